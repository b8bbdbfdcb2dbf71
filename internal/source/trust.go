package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// NeutralTrust is returned for claims whose source domain is unknown.
const NeutralTrust = 50

// ResolveTrust looks up the source behind a claim's URL and returns its
// overall trust score (mean of the five quality dimensions). An unknown
// domain is not an error; it resolves to the neutral default.
func ResolveTrust(ctx context.Context, store Store, rawURL string) (int, error) {
	domain := Hostname(rawURL)
	if domain == "" {
		return NeutralTrust, nil
	}

	src, err := store.GetByDomain(ctx, domain)
	if err != nil {
		return 0, eris.Wrapf(err, "source: resolve trust for %s", domain)
	}
	if src == nil {
		return NeutralTrust, nil
	}
	return src.TrustScore(), nil
}

// Hostname extracts the lowercased hostname from a URL or bare domain.
// Returns "" when nothing resembling a hostname can be found.
func Hostname(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
