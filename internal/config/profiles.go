package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"statement-import-backend/internal/parser"
)

// Profile is a named, reusable parser configuration for one bank export.
type Profile struct {
	Format        string `yaml:"format"`
	parser.Config `yaml:",inline"`
}

// Profiles maps profile names to parser configurations.
type Profiles map[string]Profile

// LoadProfiles reads a YAML profile file. An empty path yields no profiles.
//
//	societe-generale:
//	  format: csv
//	  has_header: true
//	  delimiter: ";"
//	  decimal_separator: ","
//	  date_format: DD/MM/YYYY
//	  columns: {date: A, description: B, amount: C}
func LoadProfiles(path string) (Profiles, error) {
	if path == "" {
		return Profiles{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parse profiles: %w", err)
	}
	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing parse profiles: %w", err)
	}
	for name, p := range profiles {
		format, err := parser.ParseFormat(p.Format)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		if err := p.Config.Validate(format); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		p.Format = string(format)
		profiles[name] = p
	}
	if profiles == nil {
		profiles = Profiles{}
	}
	return profiles, nil
}

// Lookup returns the named profile.
func (p Profiles) Lookup(name string) (Profile, bool) {
	prof, ok := p[name]
	return prof, ok
}
