// Package discovery advertises and finds audiows servers with mDNS/DNS-SD.
//
// Servers started with advertising enabled register the "_audiows._tcp"
// service under their instance name, with TXT records:
//
//	path=/          WebSocket path to dial
//	version=v0.3.0  server build version
//
// # Usage
//
//	adv, err := discovery.Advertise("studio", 9001, discovery.TXTRecords("/", version.Version))
//	defer adv.Shutdown()
//
//	endpoints, err := discovery.ScanForServers(ctx, 5*time.Second)
//	for _, ep := range endpoints {
//	    fmt.Println(ep.Instance, ep.WSURL())
//	}
//
// # Network Requirements
//
//   - Multicast on the local segment (UDP 5353)
//   - Client and server on the same link
package discovery
