package model

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a descriptor file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model file %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates descriptor YAML.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrap(err, "failed to decode model descriptors")
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Validate checks the set for descriptor mistakes that would otherwise
// surface halfway through a diff.
func (s *Set) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	enums := make(map[string]bool)
	for _, e := range s.Enums {
		key := strings.ToLower(e.Name)
		if e.Name == "" {
			addf("enum without a name")
			continue
		}
		if enums[key] {
			addf("enum %s declared twice", e.Name)
		}
		enums[key] = true

		switch e.KeyGeneration {
		case KeyNone, KeyPinned, KeyIdentity:
		default:
			addf("enum %s: unsupported key generation %q", e.Name, e.KeyGeneration)
		}

		members := make(map[string]bool)
		for _, m := range e.Members {
			if members[strings.ToLower(m.Name)] {
				addf("enum %s: member %s declared twice", e.Name, m.Name)
			}
			members[strings.ToLower(m.Name)] = true
		}
	}

	models := make(map[string]bool)
	for _, m := range s.Models {
		key := strings.ToLower(m.Name)
		if m.Name == "" {
			addf("model without a name")
			continue
		}
		if models[key] {
			addf("model %s declared twice", m.Name)
		}
		models[key] = true
	}

	for _, m := range s.Models {
		if !m.Mapped() {
			continue
		}
		if len(m.Keys()) == 0 {
			addf("model %s: no primary key", m.Name)
		}
		for _, k := range m.Keys() {
			if m.Property(k) == nil {
				addf("model %s: primary key names unknown property %s", m.Name, k)
			}
		}
		for _, uk := range m.UniqueKeys {
			for _, c := range uk.Columns {
				if m.Property(c) == nil {
					addf("model %s: unique key names unknown property %s", m.Name, c)
				}
			}
		}

		columns := make(map[string]bool)
		for _, p := range m.Properties {
			if !p.Persisted() {
				continue
			}
			col := strings.ToLower(p.ColumnName())
			if columns[col] {
				addf("model %s: column %s declared twice", m.Name, p.ColumnName())
			}
			columns[col] = true

			if p.Kind == "" {
				addf("model %s: property %s has no kind", m.Name, p.Name)
			}
			if p.Kind == KindEnum {
				if p.Enum == "" {
					addf("model %s: enum property %s names no enum", m.Name, p.Name)
				} else if !enums[strings.ToLower(p.Enum)] {
					addf("model %s: property %s references unknown enum %s", m.Name, p.Name, p.Enum)
				}
			}
			if p.ForeignKey != nil && p.ForeignKey.Model == "" {
				addf("model %s: foreign key on %s names no model", m.Name, p.Name)
			}
			if p.Calculated != nil && p.Calculated.Expression == "" {
				addf("model %s: calculated property %s has no expression", m.Name, p.Name)
			}
			switch p.KeyGeneration {
			case KeyNone, KeyIdentity, KeySequential:
			default:
				addf("model %s: property %s has unsupported key generation %q", m.Name, p.Name, p.KeyGeneration)
			}
		}
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid model descriptors: %s", strings.Join(problems, "; "))
	}
	return nil
}
