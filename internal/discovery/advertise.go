package discovery

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// Advertiser publishes a running server over mDNS until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers instance as an audiows service on port, on all
// multicast-capable interfaces.
func Advertise(instance string, port int, txt []string) (*Advertiser, error) {
	if instance == "" {
		return nil, fmt.Errorf("mDNS instance name is empty")
	}
	if port <= 0 {
		return nil, fmt.Errorf("cannot advertise port %d", port)
	}

	srv, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service %q: %w", instance, err)
	}
	return &Advertiser{server: srv}, nil
}

// Shutdown withdraws the advertisement. Safe to call on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// TXTRecords builds the TXT records a server advertises.
func TXTRecords(path, version string) []string {
	if path == "" {
		path = "/"
	}
	records := []string{TXTPath + "=" + path}
	if version != "" {
		records = append(records, TXTVersion+"="+version)
	}
	return records
}
