// Package discovery finds (W)GW-SL1 gateways on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is what the gateway's web server advertises.
	ServiceType   = "_http._tcp"
	ServiceDomain = "local."

	DefaultScanTimeout = 5 * time.Second

	// hostPrefix matches gateway host names such as "HTD-GW-SL1.local."
	hostPrefix = "htd-gw"
)

type Gateway struct {
	Instance string
	Hostname string
	IP       string
	Port     int
}

func (g Gateway) String() string {
	return fmt.Sprintf("%s (%s) %s:%d", g.Instance, g.Hostname, g.IP, g.Port)
}

type Scanner struct {
	Timeout time.Duration
}

func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for gateways until the timeout passes or ctx is done.
func (s *Scanner) Scan(ctx context.Context) ([]Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu       sync.Mutex
		gateways []Gateway
	)
	go func() {
		for entry := range entries {
			if gw, ok := parseServiceEntry(entry); ok {
				mu.Lock()
				gateways = append(gateways, gw)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]Gateway(nil), gateways...), nil
}

// parseServiceEntry keeps entries whose host or instance name looks like an
// HTD gateway.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Gateway, bool) {
	if entry == nil {
		return Gateway{}, false
	}
	if !strings.HasPrefix(strings.ToLower(entry.HostName), hostPrefix) &&
		!strings.HasPrefix(strings.ToLower(entry.Instance), hostPrefix) {
		return Gateway{}, false
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return Gateway{}, false
	}

	return Gateway{
		Instance: entry.Instance,
		Hostname: strings.TrimSuffix(entry.HostName, "."),
		IP:       ip,
		Port:     entry.Port,
	}, true
}
