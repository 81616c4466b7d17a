package engine

import "strings"

// HostResult is the output of NormalizeHost.
type HostResult struct {
	// Host is ready for interpolation into a URL authority.
	Host string
	// HadPort reports that the raw header carried an explicit port.
	HadPort bool
	// Malformed reports a bracketed IPv6 literal without a closing bracket.
	// Host is then the raw header, unmodified.
	Malformed bool
}

// NormalizeHost strips any port from a raw Host header, keeping IPv6 literals
// bracketed. The original port is always dropped since redirects target the
// configured HTTPS port. It is a pure string transform: no DNS, no case
// folding, no hostname validation.
func NormalizeHost(host string) HostResult {
	if strings.HasPrefix(host, "[") {
		end := strings.IndexByte(host, ']')
		if end <= 0 {
			return HostResult{Host: host, Malformed: true}
		}
		return HostResult{
			Host:    "[" + host[1:end] + "]",
			HadPort: strings.HasPrefix(host[end+1:], ":"),
		}
	}

	if i := strings.IndexByte(host, ':'); i >= 0 {
		return HostResult{Host: host[:i], HadPort: true}
	}
	return HostResult{Host: host}
}
