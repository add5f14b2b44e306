// Package screen flags jailbreak and prompt-injection attempts in a single
// chat message before it reaches the oracle or the session.
//
// Rules are grouped into ordered families loaded from YAML (the embedded
// defaults live in patterns/screen.yaml). Families are checked in order and
// rules within a family in list order; the first match decides the verdict.
// The screen is a pure function of its input: no allow-list, no state.
package screen

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/patterns"
)

// Family names used by the default rule file.
const (
	FamilyJailbreak = "jailbreak"
	FamilyInjection = "injection"
)

// RuleFile is the on-disk rule format.
type RuleFile struct {
	Families []FamilyConfig `yaml:"families"`
}

// FamilyConfig is one ordered family of rules sharing a reason.
type FamilyConfig struct {
	Name     string       `yaml:"name"`
	Reason   string       `yaml:"reason"`
	Severity int          `yaml:"severity,omitempty"`
	Enabled  *bool        `yaml:"enabled,omitempty"`
	Rules    []RuleConfig `yaml:"rules"`
}

// RuleConfig is a single case-insensitive regex.
type RuleConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// Verdict is the result of screening one message.
type Verdict struct {
	IsThreat bool   `json:"is_threat"`
	Reason   string `json:"reason,omitempty"`
	Family   string `json:"family,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Severity int    `json:"severity,omitempty"`
}

type rule struct {
	name    string
	pattern *regexp.Regexp
}

type family struct {
	name     string
	reason   string
	severity int
	rules    []rule
}

// Screen checks messages against compiled rule families.
type Screen struct {
	families []family
}

// ParseRuleFile parses a YAML rule file.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing screen rules YAML: %w", err)
	}
	return &rf, nil
}

// New compiles the given families. Disabled families are skipped.
func New(families []FamilyConfig) (*Screen, error) {
	s := &Screen{}
	for _, fc := range families {
		if fc.Enabled != nil && !*fc.Enabled {
			continue
		}
		f := family{name: fc.Name, reason: fc.Reason, severity: fc.Severity}
		for _, rc := range fc.Rules {
			compiled, err := regexp.Compile("(?i)" + rc.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling screen rule %q in %q: %w", rc.Name, fc.Name, err)
			}
			f.rules = append(f.rules, rule{name: rc.Name, pattern: compiled})
		}
		s.families = append(s.families, f)
	}
	return s, nil
}

// NewDefault builds a Screen from the embedded rule file.
func NewDefault() (*Screen, error) {
	rf, err := ParseRuleFile(patterns.ScreenYAML())
	if err != nil {
		return nil, fmt.Errorf("loading embedded screen rules: %w", err)
	}
	return New(rf.Families)
}

// MustNewDefault is NewDefault for process start-up; it panics when the
// embedded rules are broken.
func MustNewDefault() *Screen {
	s, err := NewDefault()
	if err != nil {
		panic(err)
	}
	return s
}

// Check screens one message.
func (s *Screen) Check(text string) Verdict {
	for _, f := range s.families {
		for _, r := range f.rules {
			if r.pattern.MatchString(text) {
				return Verdict{
					IsThreat: true,
					Reason:   f.reason,
					Family:   f.name,
					Rule:     r.name,
					Severity: f.severity,
				}
			}
		}
	}
	return Verdict{}
}

// RuleCount returns the number of compiled rules.
func (s *Screen) RuleCount() int {
	n := 0
	for _, f := range s.families {
		n += len(f.rules)
	}
	return n
}
