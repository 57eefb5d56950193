package scanner

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rpictl/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialer udaje sieć: otwarte są tylko hosty z mapy open
type fakeDialer struct {
	open    map[string]bool
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	cur := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		seen := d.maxSeen.Load()
		if cur <= seen || d.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	if !d.open[host] {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

type fakeResolver struct {
	names map[string]string
}

func (r fakeResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	if name, ok := r.names[addr]; ok {
		return []string{name}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
}

func hostRange(prefix string, n int) []string {
	hosts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		hosts = append(hosts, prefix+strconv.Itoa(i))
	}
	return hosts
}

func TestCandidates(t *testing.T) {
	hosts, err := Candidates("192.168.31.230")
	require.NoError(t, err)

	assert.Len(t, hosts, 253)
	assert.Equal(t, "192.168.31.1", hosts[0])
	assert.Equal(t, "192.168.31.254", hosts[len(hosts)-1])
	assert.NotContains(t, hosts, "192.168.31.230")
	assert.NotContains(t, hosts, "192.168.31.0")
	assert.NotContains(t, hosts, "192.168.31.255")

	_, err = Candidates("fe80::1")
	assert.Error(t, err)
	_, err = Candidates("garbage")
	assert.Error(t, err)
}

func TestLocalIP_IsIPv4(t *testing.T) {
	ip := net.ParseIP(LocalIP())
	require.NotNil(t, ip)
	assert.NotNil(t, ip.To4())
}

func TestScanHosts_ReturnsExactlyOpenHosts(t *testing.T) {
	dialer := &fakeDialer{
		open: map[string]bool{"10.0.0.3": true, "10.0.0.17": true, "10.0.0.200": true},
	}
	resolver := fakeResolver{names: map[string]string{"10.0.0.3": "raspberrypi.lan."}}
	s := New(Options{Port: 22, Dialer: dialer, Resolver: resolver})

	devices := s.ScanHosts(context.Background(), hostRange("10.0.0.", 254))

	assert.Equal(t, []models.Device{
		{IP: "10.0.0.3", Hostname: "raspberrypi.lan"},
		{IP: "10.0.0.17", Hostname: models.UnknownHostname},
		{IP: "10.0.0.200", Hostname: models.UnknownHostname},
	}, devices)
}

func TestScanHosts_BoundedConcurrencyAndTime(t *testing.T) {
	dialer := &fakeDialer{delay: 50 * time.Millisecond}
	s := New(Options{Workers: 50, Dialer: dialer, Resolver: fakeResolver{}})

	start := time.Now()
	devices := s.ScanHosts(context.Background(), hostRange("10.1.1.", 254))
	elapsed := time.Since(start)

	assert.Empty(t, devices)
	assert.LessOrEqual(t, dialer.maxSeen.Load(), int32(50))
	assert.Greater(t, dialer.maxSeen.Load(), int32(1))
	// 254 prób po 50ms: sekwencyjnie ~12.7s, z pulą 50 ~0.3s
	assert.Less(t, elapsed, 3*time.Second)
}

func TestScanHosts_RespectsProbeTimeout(t *testing.T) {
	dialer := &fakeDialer{delay: time.Hour, open: map[string]bool{"10.2.2.1": true}}
	s := New(Options{Timeout: 20 * time.Millisecond, Dialer: dialer, Resolver: fakeResolver{}})

	start := time.Now()
	devices := s.ScanHosts(context.Background(), hostRange("10.2.2.", 10))
	assert.Empty(t, devices)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScanHosts_RealLoopbackListener(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := lis.Addr().(*net.TCPAddr).Port
	s := New(Options{Port: port, Resolver: fakeResolver{}})

	// 127.0.0.2-4 należą do pętli zwrotnej, ale nikt tam nie nasłuchuje
	devices := s.ScanHosts(context.Background(), []string{"127.0.0.1", "127.0.0.2", "127.0.0.3", "127.0.0.4"})
	lis.Close()
	wg.Wait()

	require.Len(t, devices, 1)
	assert.Equal(t, "127.0.0.1", devices[0].IP)
}

func TestProbe(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := lis.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	assert.NoError(t, Probe(context.Background(), "127.0.0.1", port, time.Second))

	lis.Close()
	err = Probe(context.Background(), "127.0.0.1", port, time.Second)
	assert.ErrorContains(t, err, "could not reach")
}

func TestNew_Defaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, DefaultPort, s.port)
	assert.Equal(t, DefaultTimeout, s.timeout)
	assert.Equal(t, DefaultWorkers, s.workers)
}
