// internal/scanner/scanner.go

package scanner

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"rpictl/internal/logging"
	"rpictl/internal/models"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPort         = 22
	DefaultTimeout      = 500 * time.Millisecond
	DefaultWorkers      = 50
	DefaultProbeTimeout = 3 * time.Second

	// Adres nie musi być osiągalny - UDP "connect" nie wysyła pakietów,
	// a system i tak wybiera interfejs wyjściowy.
	outboundProbeAddr = "10.255.255.255:1"
	fallbackLocalIP   = "127.0.0.1"
)

// Dialer pozwala podmienić sposób nawiązywania połączeń (testy)
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver wykonuje reverse DNS
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

type Options struct {
	Port     int
	Timeout  time.Duration
	Workers  int
	Dialer   Dialer
	Resolver Resolver
	Logger   *log.Logger
}

// Scanner szuka w lokalnej podsieci /24 hostów z otwartym portem TCP
type Scanner struct {
	port     int
	timeout  time.Duration
	workers  int
	dialer   Dialer
	resolver Resolver
	logger   *log.Logger
}

func New(opts Options) *Scanner {
	s := &Scanner{
		port:     opts.Port,
		timeout:  opts.Timeout,
		workers:  opts.Workers,
		dialer:   opts.Dialer,
		resolver: opts.Resolver,
		logger:   opts.Logger,
	}
	if s.port <= 0 {
		s.port = DefaultPort
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	if s.resolver == nil {
		s.resolver = net.DefaultResolver
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// LocalIP zwraca adres IPv4 interfejsu wyjściowego albo 127.0.0.1
func LocalIP() string {
	conn, err := net.Dial("udp4", outboundProbeAddr)
	if err != nil {
		return fallbackLocalIP
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil {
		return fallbackLocalIP
	}
	return addr.IP.String()
}

// Candidates zwraca adresy .1-.254 podsieci /24 adresu localIP, bez samego localIP
func Candidates(localIP string) ([]string, error) {
	ip := net.ParseIP(localIP).To4()
	if ip == nil {
		return nil, fmt.Errorf("not an IPv4 address: %q", localIP)
	}

	hosts := make([]string, 0, 253)
	for i := 1; i <= 254; i++ {
		candidate := net.IPv4(ip[0], ip[1], ip[2], byte(i)).String()
		if candidate == localIP {
			continue
		}
		hosts = append(hosts, candidate)
	}
	return hosts, nil
}

// Scan przeszukuje podsieć /24 lokalnego adresu.
// Blokuje do zakończenia wszystkich prób.
func (s *Scanner) Scan(ctx context.Context) ([]models.Device, error) {
	localIP := LocalIP()
	hosts, err := Candidates(localIP)
	if err != nil {
		return nil, err
	}

	prefix := localIP[:strings.LastIndex(localIP, ".")]
	s.logger.Info("scanning network", "subnet", prefix+".0/24", "port", s.port)

	devices := s.ScanHosts(ctx, hosts)
	return devices, ctx.Err()
}

// ScanHosts sprawdza podane adresy z ograniczoną liczbą równoległych prób.
// Nieudane próby są pomijane bez zgłaszania błędu.
func (s *Scanner) ScanHosts(ctx context.Context, hosts []string) []models.Device {
	var (
		mu      sync.Mutex
		devices = make([]models.Device, 0)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, host := range hosts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			device, ok := s.checkPort(gctx, host)
			if !ok {
				return nil
			}
			mu.Lock()
			devices = append(devices, device)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sortDevices(devices)
	s.logger.Info("scan finished", "found", len(devices), "probed", len(hosts))
	return devices
}

func (s *Scanner) checkPort(ctx context.Context, host string) (models.Device, bool) {
	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(s.port)))
	if err != nil {
		return models.Device{}, false
	}
	conn.Close()

	device := models.Device{IP: host, Hostname: s.lookupHostname(ctx, host)}
	s.logger.Debug("found device", "ip", device.IP, "hostname", device.Hostname)
	return device, true
}

func (s *Scanner) lookupHostname(ctx context.Context, ip string) string {
	names, err := s.resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return models.UnknownHostname
	}
	name := strings.TrimSuffix(names[0], ".")
	if name == "" {
		return models.UnknownHostname
	}
	return name
}

// Probe sprawdza czy host:port przyjmuje połączenia TCP (test połączenia)
func Probe(ctx context.Context, host string, port int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("could not reach %s:%d: %w", host, port, err)
	}
	return conn.Close()
}

func sortDevices(devices []models.Device) {
	sort.Slice(devices, func(i, j int) bool {
		a, b := net.ParseIP(devices[i].IP), net.ParseIP(devices[j].IP)
		if a == nil || b == nil {
			return devices[i].IP < devices[j].IP
		}
		return bytes.Compare(a.To16(), b.To16()) < 0
	})
}
