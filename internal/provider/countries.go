package provider

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/countries.yaml
var countriesYAML []byte

// countryTable maps ISO 3166-1 alpha-3 codes to canonical entity names, and
// the reverse, both loaded once at startup.
var (
	codeToName = mustLoadCountries()
	nameToCode = invertCountries(codeToName)
)

func mustLoadCountries() map[string]string {
	m := make(map[string]string)
	if err := yaml.Unmarshal(countriesYAML, &m); err != nil {
		panic("provider: bad embedded countries table: " + err.Error())
	}
	return m
}

func invertCountries(m map[string]string) map[string]string {
	inv := make(map[string]string, len(m))
	for code, name := range m {
		inv[strings.ToLower(name)] = code
	}
	return inv
}

// ResolveCode maps an entity to its ISO3 code. Accepts either a canonical
// country name or a bare ISO3 code.
func ResolveCode(entity string) (string, bool) {
	if code, ok := nameToCode[strings.ToLower(strings.TrimSpace(entity))]; ok {
		return code, true
	}
	upper := strings.ToUpper(strings.TrimSpace(entity))
	if _, ok := codeToName[upper]; ok {
		return upper, true
	}
	return "", false
}

// EntityName returns the canonical entity name for an ISO3 code.
func EntityName(code string) (string, bool) {
	name, ok := codeToName[strings.ToUpper(code)]
	return name, ok
}

// Entities returns every tracked entity name, sorted.
func Entities() []string {
	names := make([]string, 0, len(codeToName))
	for _, name := range codeToName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
