package pool

import (
	"context"
	"log"
	"net"
	"sort"
	"time"

	"github.com/sref/mysqlpool/pkg/connstring"
)

const (
	minReaperPeriod = 1 * time.Second
	maxReaperPeriod = 60 * time.Second
)

// StartBackgroundTasks launches the reaper timer and, for TCP pools with
// DNS checking enabled, the DNS-change watcher. Called once by the
// registry when a pool is first created.
func (p *ConnectionPool) StartBackgroundTasks() {
	if p.settings.IdleTimeout > 0 {
		p.bgWG.Add(1)
		go p.reaperLoop()
	}

	if p.settings.Protocol == connstring.ProtocolTCP && p.settings.DNSCheckInterval > 0 {
		p.bgWG.Add(1)
		go p.dnsWatchLoop()
	}
}

func reaperPeriod(idleTimeout time.Duration) time.Duration {
	period := idleTimeout / 2
	if period < minReaperPeriod {
		return minReaperPeriod
	}
	if period > maxReaperPeriod {
		return maxReaperPeriod
	}
	return period
}

func (p *ConnectionPool) reaperLoop() {
	defer p.bgWG.Done()

	period := reaperPeriod(p.settings.IdleTimeout)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), period)
			if err := p.Reap(ctx, ModeAsync); err != nil {
				log.Printf("[background] %s: reap tick failed: %v", p.name, err)
			}
			cancel()
		}
	}
}

func (p *ConnectionPool) dnsWatchLoop() {
	defer p.bgWG.Done()

	ticker := time.NewTicker(p.settings.DNSCheckInterval)
	defer ticker.Stop()

	known := make(map[string][]string, len(p.settings.Hosts))
	for _, host := range p.settings.Hosts {
		if addrs, err := resolveSorted(host); err == nil {
			known[host] = addrs
		}
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			changed := false
			for _, host := range p.settings.Hosts {
				addrs, err := resolveSorted(host)
				if err != nil {
					log.Printf("[background] %s: DNS resolution failed for %s: %v", p.name, host, err)
					continue
				}
				if addressSetChanged(known[host], addrs) {
					changed = true
				}
				known[host] = addrs
			}

			if changed {
				ctx, cancel := context.WithTimeout(context.Background(), p.settings.DNSCheckInterval)
				if err := p.Clear(ctx, ModeAsync); err != nil {
					log.Printf("[background] %s: DNS-triggered clear failed: %v", p.name, err)
				}
				cancel()
			}
		}
	}
}

func resolveSorted(host string) ([]string, error) {
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), addrs...)
	sort.Strings(sorted)
	return sorted, nil
}

// addressSetChanged reports whether any previously known address is
// missing from the new set.
func addressSetChanged(previous, current []string) bool {
	currentSet := make(map[string]struct{}, len(current))
	for _, a := range current {
		currentSet[a] = struct{}{}
	}
	for _, a := range previous {
		if _, ok := currentSet[a]; !ok {
			return true
		}
	}
	return false
}
