// ABOUTME: mDNS advertisement of the control endpoint
// ABOUTME: Publishes the websocket service on the local network
package discovery

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/mdns"
)

const serviceType = "_wavedaq._tcp"

// Advertiser publishes the control endpoint over mDNS until Shutdown
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces a control endpoint named instance on port
func Advertise(instance string, port int) (*Advertiser, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	// mdns requires a fully qualified host name
	if !strings.HasSuffix(host, ".") {
		host += "."
	}

	info := []string{"path=/ws"}
	service, err := mdns.NewMDNSService(instance, serviceType, "", host, port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	log.Printf("Advertising %s.%s on port %d", instance, serviceType, port)
	return &Advertiser{server: server}, nil
}

// Shutdown stops the advertisement
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}
