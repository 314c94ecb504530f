package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxProtocolRules = 100
	maxRuleIDLength  = 100
	catchAllExpr     = "true"
)

var ruleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidateProtocol checks a decision table before it is compiled.
// Returns an error describing the first problem found, nil if the table is
// usable.
func ValidateProtocol(table []Rule) error {
	if len(table) == 0 {
		return fmt.Errorf("protocol cannot be empty, must contain at least one rule")
	}
	if len(table) > maxProtocolRules {
		return fmt.Errorf("protocol contains %d rules, maximum allowed is %d", len(table), maxProtocolRules)
	}

	seen := make(map[string]bool, len(table))
	for i, rule := range table {
		if err := validateRuleID(rule.ID); err != nil {
			return fmt.Errorf("invalid id %q for rule %d: %w", rule.ID, i, err)
		}
		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true

		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("rule %q has empty name", rule.ID)
		}
		if rule.Expression == "" {
			return fmt.Errorf("rule %q has empty expression", rule.ID)
		}
		if strings.TrimSpace(rule.Expression) != rule.Expression {
			return fmt.Errorf("rule %q has expression with leading/trailing whitespace: %q", rule.ID, rule.Expression)
		}
		if !rule.Color.Valid() {
			return fmt.Errorf("rule %q has invalid color %d", rule.ID, rule.Color)
		}
		if rule.rationale == nil {
			return fmt.Errorf("rule %q has no rationale", rule.ID)
		}
	}

	// Classification must be total: the last row catches everything.
	if last := table[len(table)-1]; last.Expression != catchAllExpr {
		return fmt.Errorf("last rule %q must be the catch-all %q, got %q", last.ID, catchAllExpr, last.Expression)
	}

	return nil
}

// validateRuleID requires a lowercase kebab-case identifier of 1-100 characters.
func validateRuleID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > maxRuleIDLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(id), maxRuleIDLength)
	}
	if !ruleIDPattern.MatchString(id) {
		return fmt.Errorf("must match pattern %s", ruleIDPattern)
	}
	return nil
}
