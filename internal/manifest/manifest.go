// Package manifest provides parsing and validation for formula
// declaration files.
//
// A formula.toml names a formula bundle, gives it a version, and declares
// its dependencies as ordered lists of {name, range} records. The root
// project keeps one at the workspace root; every registry-stored bundle
// embeds its own copy.
package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// Filename is the reserved manifest file name inside a workspace or a
// registry bundle.
const Filename = "formula.toml"

// Manifest is a parsed formula declaration.
type Manifest struct {
	// Name is the globally unique formula name, optionally scoped
	// as @scope/name.
	Name string `toml:"name" jsonschema:"required"`
	// Version is the formula's semantic version, possibly a WIP prerelease.
	Version string `toml:"version" jsonschema:"required"`
	// Description explains what this formula provides.
	Description string `toml:"description,omitempty"`
	// Keywords aid registry search.
	Keywords []string `toml:"keywords,omitempty"`
	// Dependencies are the regular dependency records, in declaration order.
	Dependencies []Dependency `toml:"dependencies,omitempty"`
	// DevDependencies are development-only dependency records.
	DevDependencies []Dependency `toml:"dev-dependencies,omitempty"`
	// Overrides pins formula names to exact versions. Root-level only;
	// written by conflict resolution (pin-and-retry) and taking
	// precedence over every transitively inherited range.
	Overrides map[string]string `toml:"overrides,omitempty"`
}

// Dependency is one declared dependency: a formula name plus a semver
// range constraint.
type Dependency struct {
	// Name is the depended-on formula.
	Name string `toml:"name" jsonschema:"required"`
	// Range is the acceptable semver range (e.g. "^1.2.0").
	Range string `toml:"range" jsonschema:"required"`
}

// namePattern matches unscoped formula names and each half of a scoped one.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Parse decodes TOML data into a Manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Encode renders a Manifest back to TOML.
func Encode(m *Manifest) ([]byte, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

// Validate checks a Manifest for structural correctness: a well-formed
// name, a parseable version, well-formed dependency records, and
// parseable override pins.
func Validate(m *Manifest) error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %q has no version", m.Name)
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("manifest %q has invalid version %q", m.Name, m.Version)
	}
	seen := make(map[string]bool)
	for _, group := range [][]Dependency{m.Dependencies, m.DevDependencies} {
		for _, d := range group {
			if err := ValidateName(d.Name); err != nil {
				return fmt.Errorf("manifest %q: dependency: %w", m.Name, err)
			}
			if seen[d.Name] {
				return fmt.Errorf("manifest %q declares dependency %q twice", m.Name, d.Name)
			}
			seen[d.Name] = true
			if _, err := semver.NewConstraint(d.Range); err != nil {
				return fmt.Errorf("manifest %q: dependency %q has invalid range %q", m.Name, d.Name, d.Range)
			}
		}
	}
	for name, pin := range m.Overrides {
		if err := ValidateName(name); err != nil {
			return fmt.Errorf("manifest %q: override: %w", m.Name, err)
		}
		if _, err := semver.NewVersion(pin); err != nil {
			return fmt.Errorf("manifest %q: override for %q has invalid version %q", m.Name, name, pin)
		}
	}
	return nil
}

// ValidateName checks a formula name, scoped or unscoped.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("formula name is required")
	}
	scope, base, scoped := strings.Cut(name, "/")
	if scoped {
		if !strings.HasPrefix(scope, "@") || !namePattern.MatchString(scope[1:]) || !namePattern.MatchString(base) {
			return fmt.Errorf("invalid formula name %q", name)
		}
		return nil
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid formula name %q", name)
	}
	return nil
}

// SetOverride records an exact-version pin, replacing any previous pin
// for the same name.
func (m *Manifest) SetOverride(name, exactVersion string) {
	if m.Overrides == nil {
		m.Overrides = make(map[string]string)
	}
	m.Overrides[name] = exactVersion
}

// FindDependency returns the declared record for name, searching regular
// dependencies before dev ones.
func (m *Manifest) FindDependency(name string) (Dependency, bool) {
	for _, d := range m.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	for _, d := range m.DevDependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}
