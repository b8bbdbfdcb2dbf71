package source

import "strings"

// MatchTld finds the longest suffix in the TLD reputation table matching the
// domain. Multi-label suffixes like ".co.uk" win over ".uk". Returns the
// matched entry and true, or zero value and false when nothing matches.
func MatchTld(domain string, table []TldScore) (TldScore, bool) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return TldScore{}, false
	}

	var best TldScore
	found := false
	for _, entry := range table {
		suffix := strings.ToLower(entry.TLD)
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		if !strings.HasSuffix(domain, suffix) {
			continue
		}
		if !found || len(suffix) > len(best.TLD) {
			best = TldScore{TLD: suffix, Score: entry.Score}
			found = true
		}
	}
	return best, found
}

// RegistrableRoot returns the registrable portion of a domain: the matched
// multi-label TLD plus one label when the table knows the suffix, otherwise
// the last two DNS labels.
func RegistrableRoot(domain string, table []TldScore) string {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ""
	}

	if entry, ok := MatchTld(domain, table); ok {
		prefix := strings.TrimSuffix(domain, entry.TLD)
		labels := strings.Split(prefix, ".")
		if last := labels[len(labels)-1]; last != "" {
			return last + entry.TLD
		}
	}

	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return domain
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// normalizeDomain lowercases and strips ports and trailing dots.
func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}
