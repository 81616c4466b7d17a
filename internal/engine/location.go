package engine

import "strconv"

// BuildLocation returns the absolute HTTPS redirect target. The port is
// omitted when it is 443. uri is appended byte-for-byte: no escaping and no
// path cleaning, so the original request target survives the redirect.
func BuildLocation(host, uri string, httpsPort int) string {
	if httpsPort == DefaultHTTPSPort {
		return "https://" + host + uri
	}
	return "https://" + host + ":" + strconv.Itoa(httpsPort) + uri
}
