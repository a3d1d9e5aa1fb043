package kbucket

import (
	"net"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	asnutil "github.com/libp2p/go-libp2p-asn-util"
	"github.com/libp2p/go-cidranger"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// privateRanges are excluded from diversity grouping so that test networks
// and single-host deployments (everything behind 127.0.0.0/8 or RFC1918)
// never trip the diversity cap.
var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
}

// DiversityFilter caps how many routing-table peers may share the same
// network group — an IPv4 /16 prefix, or an IPv6 address' announcing ASN —
// so that a single operator cannot fill a bucket with sybils on one subnet.
// Grounded on the real go-libp2p-kbucket peerdiversity subsystem, which the
// retrieved table.go does not itself include.
type DiversityFilter struct {
	maxPerGroup int

	mu       sync.Mutex
	counts   map[string]int
	assigned map[peer.ID]string
	private  cidranger.Ranger
}

// NewDiversityFilter constructs a filter allowing at most maxPerGroup peers
// in the routing table per network group.
func NewDiversityFilter(maxPerGroup int) *DiversityFilter {
	r := cidranger.NewPCTrieRanger()
	for _, cidr := range privateRanges {
		_, nw, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		_ = r.Insert(cidranger.NewBasicRangerEntry(*nw))
	}
	return &DiversityFilter{
		maxPerGroup: maxPerGroup,
		counts:      make(map[string]int),
		assigned:    make(map[peer.ID]string),
		private:     r,
	}
}

// groupFor derives the diversity group key for an address, or "" if the
// address has no usable IP (relay/onion addresses, etc. are never grouped
// and thus never rejected).
func (f *DiversityFilter) groupFor(addr ma.Multiaddr) string {
	ip, err := manet.ToIP(addr)
	if err != nil || ip == nil {
		return ""
	}
	isPrivate, err := f.private.Contains(ip)
	if err == nil && isPrivate {
		return ""
	}
	if ip4 := ip.To4(); ip4 != nil {
		return "v4:" + ip4.Mask(net.CIDRMask(16, 32)).String()
	}
	if asn, err := asnutil.Store.AsnForIPv6(ip); err == nil && asn != "" {
		return "asn:" + asn
	}
	return "v6:" + ip.Mask(net.CIDRMask(32, 128)).String()
}

// Allow reports whether p may be admitted given its known addresses,
// counting it against its group's cap if so. Peers with no groupable
// address are always allowed.
func (f *DiversityFilter) Allow(p peer.ID, addrs []ma.Multiaddr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, already := f.assigned[p]; already {
		return true
	}

	group := ""
	for _, a := range addrs {
		if g := f.groupFor(a); g != "" {
			group = g
			break
		}
	}
	if group == "" {
		return true
	}
	if f.counts[group] >= f.maxPerGroup {
		return false
	}
	f.counts[group]++
	f.assigned[p] = group
	return true
}

// Remove releases p's diversity-group accounting, called when p leaves the
// routing table.
func (f *DiversityFilter) Remove(p peer.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.assigned[p]
	if !ok {
		return
	}
	delete(f.assigned, p)
	f.counts[group]--
	if f.counts[group] <= 0 {
		delete(f.counts, group)
	}
}
