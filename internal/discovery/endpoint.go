package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Endpoint is an audiows control server found on the local network.
type Endpoint struct {
	// Instance is the mDNS instance name (e.g., "studio")
	Instance string

	// Hostname is the advertised host (e.g., "studio-pi.local.")
	Hostname string

	// IP prefers IPv4 when both families are advertised
	IP string

	Port int

	// Metadata holds the TXT records, e.g. "path=/", "version=v0.3.0"
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the endpoint
func (e *Endpoint) String() string {
	return fmt.Sprintf("audiows %q (%s) at %s", e.Instance, e.Hostname, net.JoinHostPort(e.IP, strconv.Itoa(e.Port)))
}

// WSURL returns the WebSocket control URL, honoring an advertised path.
func (e *Endpoint) WSURL() string {
	path := e.GetMetadata(TXTPath)
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(e.IP, strconv.Itoa(e.Port)),
		Path:   path,
	}
	return u.String()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (e *Endpoint) GetMetadata(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}
