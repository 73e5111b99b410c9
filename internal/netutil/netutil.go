// Package netutil holds small networking helpers shared by the harness.
package netutil

import (
	"fmt"
	"math/rand/v2"
	"net"
)

// probeAddr is only used to select a route; no packets are sent.
const probeAddr = "1.1.1.1:80"

// HostIP returns the IP address of the interface that routes to the public
// internet. Containers on the bridge network can reach the host on it.
func HostIP() (string, error) {
	conn, err := net.Dial("udp", probeAddr)
	if err != nil {
		return "", fmt.Errorf("determining host IP: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("determining host IP: unexpected local address %v", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

// RandomPort picks a port uniformly from [min, max]. It does not check that
// the port is free.
func RandomPort(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.IntN(max-min+1)
}
