// internal/ui/table.go

package ui

import (
	"fmt"

	"rpictl/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// DeviceTable renderuje wyniki skanowania jako tabelę IP / hostname
func DeviceTable(devices []models.Device) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.IP, d.Hostname})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		}).
		Headers("IP", "HOSTNAME").
		Rows(rows...)

	return t.String() + "\n" + DescriptionStyle.Render(fmt.Sprintf("%d device(s) found", len(devices)))
}

// ProfileTable renderuje zapisane profile (bez haseł)
func ProfileTable(hosts []models.Host) string {
	rows := make([][]string, 0, len(hosts))
	for _, h := range hosts {
		auth := "password"
		if h.KeyPath != "" {
			auth = "key"
		} else if !h.HasPassword() {
			auth = "-"
		}
		rows = append(rows, []string{h.Name, h.Login, h.SSHAddr(), h.ControlAddr(), auth})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		}).
		Headers("NAME", "LOGIN", "SSH", "CONTROL", "AUTH").
		Rows(rows...)

	return t.String()
}
