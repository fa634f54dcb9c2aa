package admission

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules configures the Guard. It can be loaded from a YAML file:
//
//	limit: 10
//	window: 1h
//	escalate_after: 5
//	escalate_window: 10m
//	block_for: 24h
//	blocked_owners:
//	  - user_123
type Rules struct {
	Limit          int           `yaml:"limit"`
	Window         time.Duration `yaml:"window"`
	EscalateAfter  int           `yaml:"escalate_after"`
	EscalateWindow time.Duration `yaml:"escalate_window"`
	BlockFor       time.Duration `yaml:"block_for"`
	BlockedOwners  []string      `yaml:"blocked_owners"`
}

// DefaultRules returns the rules used when no file is configured.
func DefaultRules() Rules {
	def := DefaultLimiterConfig()
	return Rules{
		Limit:          def.Limit,
		Window:         def.Window,
		EscalateAfter:  5,
		EscalateWindow: 10 * time.Minute,
		BlockFor:       24 * time.Hour,
	}
}

// LoadRules reads rules from a YAML file. Fields missing from the file keep
// their default values.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read admission rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules on top of DefaultRules and validates them.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse admission rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate reports every invalid field at once.
func (r Rules) Validate() error {
	var errs []error
	if r.Limit <= 0 {
		errs = append(errs, fmt.Errorf("limit must be positive, got %d", r.Limit))
	}
	if r.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %s", r.Window))
	}
	if r.EscalateAfter < 0 {
		errs = append(errs, fmt.Errorf("escalate_after must not be negative, got %d", r.EscalateAfter))
	}
	if r.EscalateAfter > 0 && (r.EscalateWindow <= 0 || r.BlockFor <= 0) {
		errs = append(errs, errors.New("escalate_window and block_for must be positive when escalate_after is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid admission rules: %w", errors.Join(errs...))
	}
	return nil
}
