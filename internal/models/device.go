// internal/models/device.go

package models

// UnknownHostname oznacza brak rekordu PTR dla adresu
const UnknownHostname = "Unknown"

// Device to host znaleziony podczas skanowania sieci
type Device struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
}
