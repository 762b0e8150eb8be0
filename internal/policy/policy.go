// Package policy loads the operator-editable sync policy file: which
// computer status transitions are allowed and which platforms may
// auto-register computers.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/migasfree/migasfree-backend/internal/domain"
)

// fileSchema is the on-disk YAML shape.
type fileSchema struct {
	StatusTransitions map[string][]string `yaml:"status_transitions"`
	AutoRegister      struct {
		Platforms []string `yaml:"platforms"`
	} `yaml:"auto_register"`
}

// Policy answers the two configuration-driven questions of the sync core.
// The zero value is unusable; build one with Load or Default.
type Policy struct {
	// transitions[from][to]; a nil map allows everything.
	transitions map[string]map[string]bool
	// platforms allowed to auto-register; nil allows everything.
	platforms map[string]bool
}

// Default allows every transition between valid statuses and
// auto-registration on every platform.
func Default() *Policy {
	return &Policy{}
}

// Load reads and validates the policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	p := &Policy{}

	if len(schema.StatusTransitions) > 0 {
		p.transitions = make(map[string]map[string]bool, len(schema.StatusTransitions))
		for from, targets := range schema.StatusTransitions {
			if !domain.ValidStatus(from) {
				return nil, fmt.Errorf("policy file: unknown status %q", from)
			}
			set := make(map[string]bool, len(targets))
			for _, to := range targets {
				if !domain.ValidStatus(to) {
					return nil, fmt.Errorf("policy file: unknown status %q", to)
				}
				set[to] = true
			}
			p.transitions[from] = set
		}
	}

	if len(schema.AutoRegister.Platforms) > 0 {
		p.platforms = make(map[string]bool, len(schema.AutoRegister.Platforms))
		for _, name := range schema.AutoRegister.Platforms {
			p.platforms[name] = true
		}
	}

	return p, nil
}

// TransitionAllowed reports whether a computer may move between the two
// statuses. Unlisted source statuses keep all their transitions.
func (p *Policy) TransitionAllowed(from, to string) bool {
	if p.transitions == nil {
		return true
	}
	targets, ok := p.transitions[from]
	if !ok {
		return true
	}
	return targets[to]
}

// PlatformAllowed reports whether computers of the platform may be
// auto-registered.
func (p *Policy) PlatformAllowed(name string) bool {
	if p.platforms == nil {
		return true
	}
	return p.platforms[name]
}
