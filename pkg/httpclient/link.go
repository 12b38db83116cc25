package httpclient

import (
	"strings"
)

// ParseLinkHeader parses RFC 8288 Link header values into rel -> URL. Multiple
// header lines and comma separated entries are both accepted.
func ParseLinkHeader(values ...string) map[string]string {
	links := make(map[string]string)
	for _, value := range values {
		for _, entry := range strings.Split(value, ",") {
			parts := strings.Split(strings.TrimSpace(entry), ";")
			if len(parts) < 2 {
				continue
			}

			target := strings.TrimSpace(parts[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")

			for _, param := range parts[1:] {
				key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
					if _, exists := links[rel]; !exists {
						links[rel] = target
					}
				}
			}
		}
	}
	return links
}

// NextLink returns the rel="next" target, or "" when there is no further page.
func NextLink(values []string) string {
	return ParseLinkHeader(values...)["next"]
}
