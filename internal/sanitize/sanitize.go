// Package sanitize strips personally-identifying and internal-only
// substrings from free text before it can reach the public calendar.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholders substituted for removed content.
const (
	EmailPlaceholder = "[email removed]"
	PhonePlaceholder = "[phone removed]"
	VideoPlaceholder = "[video call link removed]"
	LinkPlaceholder  = "[link removed]"
)

// AllowedHosts are hosts whose URLs survive sanitization: the organization's
// own domains plus the social platforms it publishes on. Subdomains of an
// allowed host are allowed too.
var AllowedHosts = []string{
	"gracechapel.org",
	"facebook.com",
	"instagram.com",
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"spotify.com",
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d(?:[\s\-.()]*\d){6,}`)
	videoRe = regexp.MustCompile(`https?://[^\s<>"']*(?:zoom\.us|meet\.google\.com|teams\.microsoft\.com|teams\.live\.com|webex\.com|gotomeeting\.com)[^\s<>"']*`)
	urlRe   = regexp.MustCompile(`https?://[^\s<>"']+`)

	crlfRe  = regexp.MustCompile(`\r\n?`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

// Text masks emails, phone-number-like digit runs, conferencing links and
// non-allow-listed URLs, then normalizes whitespace. It returns "" when
// nothing survives, so callers can tell "no data" from "data removed".
//
// Conferencing URLs are masked before the phone pass so their numeric path
// segments are not half-eaten as phone numbers, and all specific patterns run
// before the generic URL pass so a URL carrying an email-like query parameter
// is masked exactly once.
func Text(input string) string {
	if input == "" {
		return ""
	}

	out := emailRe.ReplaceAllString(input, EmailPlaceholder)
	out = videoRe.ReplaceAllString(out, VideoPlaceholder)
	out = phoneRe.ReplaceAllString(out, PhonePlaceholder)
	out = urlRe.ReplaceAllStringFunc(out, func(raw string) string {
		if hostAllowed(raw) {
			return raw
		}
		return LinkPlaceholder
	})

	out = crlfRe.ReplaceAllString(out, "\n")
	out = blankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func hostAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
