// Package netiface selects the network interface used to join the beacon
// multicast group.
package netiface

import (
	"fmt"
	"net"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Candidate is a multicast-capable interface and its IPv4 addresses.
type Candidate struct {
	Name  string
	Index int
	Addrs []net.IP
}

// Select resolves the interface to join the beacon group on.
// An explicit name always wins. Otherwise, when networkRange is set, the
// first up, multicast-capable, non-loopback interface with an IPv4 address
// inside the range is returned. With neither set Select returns nil, which
// leaves the choice to the kernel routing table.
func Select(name, networkRange string) (*net.Interface, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("finding interface %s: %w", name, err)
		}
		return iface, nil
	}
	if networkRange == "" {
		return nil, nil
	}

	_, ipNet, err := net.ParseCIDR(networkRange)
	if err != nil {
		return nil, fmt.Errorf("parsing network range: %w", err)
	}

	candidates, err := Candidates()
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		for _, ip := range c.Addrs {
			if ipNet.Contains(ip) {
				return net.InterfaceByIndex(c.Index)
			}
		}
	}
	return nil, fmt.Errorf("no multicast interface in network range %s", networkRange)
}

// Candidates lists interfaces that can receive the beacon.
func Candidates() ([]Candidate, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	var out []Candidate
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || !slices.Contains(iface.Flags, "multicast") {
			continue
		}
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}

		c := Candidate{Name: iface.Name, Index: iface.Index}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				continue
			}
			if ip4 := ip.To4(); ip4 != nil {
				c.Addrs = append(c.Addrs, ip4)
			}
		}
		if len(c.Addrs) > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}
