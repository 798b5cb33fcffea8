package browser

import (
	"strings"

	"github.com/chromedp/cdproto/network"
)

// FormatCookies renders cookies as a Cookie header value.
func FormatCookies(cookies []*network.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// ParseCookieString turns a Cookie header value back into cookies scoped to domain.
// Values may themselves contain '='.
func ParseCookieString(header, domain string) []*network.CookieParam {
	var out []*network.CookieParam
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		if name == "" {
			continue
		}
		out = append(out, &network.CookieParam{
			Name:   name,
			Value:  value,
			Domain: domain,
			Path:   "/",
		})
	}
	return out
}
