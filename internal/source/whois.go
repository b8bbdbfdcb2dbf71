package source

import (
	_ "embed"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Ownership probe statuses.
const (
	OwnershipKnownOrg      = "known_organization"
	OwnershipAgedRegistrar = "reputable_registrar_aged"
	OwnershipHasRegistrar  = "registrar_on_record"
	OwnershipNone          = "no_ownership_data"
	OwnershipLookupFailed  = "lookup_failed"
)

// minDomainAgeYears is the age gate for the reputable-registrar tier.
const minDomainAgeYears = 5.0

//go:embed data/ownership.yaml
var ownershipData []byte

// ownershipLists is the curated allow-list of well-known registrant
// organizations and reputable registrars.
type ownershipLists struct {
	Organizations []string `yaml:"organizations"`
	Registrars    []string `yaml:"registrars"`
}

func loadOwnershipLists() (*ownershipLists, error) {
	var lists ownershipLists
	if err := yaml.Unmarshal(ownershipData, &lists); err != nil {
		return nil, eris.Wrap(err, "source: parse ownership lists")
	}
	return &lists, nil
}

// OwnershipResult is the outcome of a WHOIS ownership probe.
type OwnershipResult struct {
	Score  int    `json:"score"` // 100, 75, 50, or 0
	Status string `json:"status"`
}

// WhoisLookup fetches the raw WHOIS record for a registrable domain.
// Injectable so classification is testable without network access.
type WhoisLookup func(domain string) (string, error)

// DefaultWhoisLookup queries WHOIS servers with a bounded timeout.
func DefaultWhoisLookup(timeout time.Duration) WhoisLookup {
	client := whois.NewClient()
	client.SetTimeout(timeout)
	return func(domain string) (string, error) {
		return client.Whois(domain)
	}
}

// ProbeOwnership resolves the domain's registrable root, performs a WHOIS
// lookup, and classifies the registration:
//
//	100 registrant organization on the allow-list
//	 75 reputable registrar and domain older than five years
//	 50 any registrar on record
//	  0 privacy-protected, lookup error, or no data
func ProbeOwnership(domain string, table []TldScore, now time.Time, lookup WhoisLookup) OwnershipResult {
	root := RegistrableRoot(domain, table)
	if root == "" {
		return OwnershipResult{Score: 0, Status: OwnershipNone}
	}

	raw, err := lookup(root)
	if err != nil {
		return OwnershipResult{Score: 0, Status: OwnershipLookupFailed}
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return OwnershipResult{Score: 0, Status: OwnershipLookupFailed}
	}

	lists, err := loadOwnershipLists()
	if err != nil {
		return OwnershipResult{Score: 0, Status: OwnershipLookupFailed}
	}

	return classifyOwnership(&parsed, lists, now)
}

func classifyOwnership(info *whoisparser.WhoisInfo, lists *ownershipLists, now time.Time) OwnershipResult {
	if info.Registrant != nil && matchesList(info.Registrant.Organization, lists.Organizations) {
		return OwnershipResult{Score: 100, Status: OwnershipKnownOrg}
	}

	registrar := ""
	if info.Registrar != nil {
		registrar = strings.TrimSpace(info.Registrar.Name)
	}

	if registrar != "" && matchesList(registrar, lists.Registrars) {
		if age, ok := domainAgeYears(info, now); ok && age > minDomainAgeYears {
			return OwnershipResult{Score: 75, Status: OwnershipAgedRegistrar}
		}
	}

	if registrar != "" {
		return OwnershipResult{Score: 50, Status: OwnershipHasRegistrar}
	}

	return OwnershipResult{Score: 0, Status: OwnershipNone}
}

// domainAgeYears computes fractional years since registration.
func domainAgeYears(info *whoisparser.WhoisInfo, now time.Time) (float64, bool) {
	if info.Domain == nil || info.Domain.CreatedDateInTime == nil {
		return 0, false
	}
	created := *info.Domain.CreatedDateInTime
	if created.After(now) {
		return 0, false
	}
	return now.Sub(created).Hours() / (24 * 365.25), true
}

// matchesList does a case-insensitive substring match against a curated list.
// WHOIS records vary in punctuation and suffixes, so exact equality is too
// brittle.
func matchesList(value string, list []string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, entry := range list {
		e := strings.ToLower(strings.TrimSpace(entry))
		if e == "" {
			continue
		}
		if strings.Contains(v, e) || strings.Contains(e, v) {
			return true
		}
	}
	return false
}
