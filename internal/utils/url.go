package utils

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/raysh454/clarity/internal/model"
	"golang.org/x/net/idna"
)

// ValidateOptions controls optional validation policies.
type ValidateOptions struct {
	DenyPrivateHosts bool `mapstructure:"deny_private_hosts"` // reject localhost and literal loopback/private/link-local IPs
}

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrMissingHost       = errors.New("missing host")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrPrivateHost       = errors.New("private or loopback host")
)

var (
	schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	// "mailto:x", "javascript:x" and "http:/x", but not "host:8080".
	opaqueScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:([^0-9]|$)`)
	httpScheme   = regexp.MustCompile(`^https?://`)
)

const invalidURLMessage = "Provide a valid URL, e.g. https://example.com"

// ValidateScanURL turns user input into the absolute https URL a scan will
// load. Bare hosts get https:// prepended and http:// is upgraded. Scheme and
// host are lower-cased, IDN hosts become punycode, and userinfo, fragment and
// an explicit :443 are dropped. Path and query are kept as given.
//
// The result never uses http:// and validating it again returns it unchanged.
// Failures are *model.ScanError values of kind InvalidURL.
func ValidateScanURL(raw string, opts ValidateOptions) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid(ErrEmptyURL)
	}

	if !schemePrefix.MatchString(s) {
		if opaqueScheme.MatchString(s) {
			return "", invalid(ErrUnsupportedScheme)
		}
		s = "https://" + s
	}

	if len(s) >= len("http://") && strings.EqualFold(s[:len("http://")], "http://") {
		s = "https://" + s[len("http://"):]
	}

	scheme, rest, _ := strings.Cut(s, "://")
	lowered := strings.ToLower(scheme) + "://" + rest
	if !httpScheme.MatchString(lowered) {
		return "", invalid(ErrUnsupportedScheme)
	}

	u, err := url.Parse(lowered)
	if err != nil {
		return "", invalid(err)
	}
	if u.Scheme != "https" {
		return "", invalid(ErrUnsupportedScheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", invalid(ErrMissingHost)
	}
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	// Mapping drops ignorable runes such as U+00AD, which can leave nothing.
	if host == "" {
		return "", invalid(ErrMissingHost)
	}

	if opts.DenyPrivateHosts && isPrivateHost(host) {
		return "", invalid(ErrPrivateHost)
	}

	port := u.Port()
	switch {
	case port == "" || port == "443":
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

func invalid(cause error) error {
	return model.NewScanError(model.KindInvalidURL, invalidURLMessage, cause)
}

func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
