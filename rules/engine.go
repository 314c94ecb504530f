package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/startrescue/internal/logger"
	"github.com/liamcoop/startrescue/patient"
)

// Engine grades patients against the START protocol table.
// The table is compiled once at construction; an Engine is immutable
// afterwards and safe for concurrent use.
type Engine struct {
	env      *cel.Env
	rules    []Rule
	programs map[string]cel.Program // ruleID -> compiled program
}

// NewEngine creates an engine for the START protocol.
func NewEngine() (*Engine, error) {
	table := startProtocol()
	if err := ValidateProtocol(table); err != nil {
		return nil, fmt.Errorf("invalid protocol: %w", err)
	}

	env, err := cel.NewEnv(
		cel.Variable("patient", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("tourniquet", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:      env,
		rules:    table,
		programs: make(map[string]cel.Program),
	}
	for _, rule := range en.rules {
		if err := en.compileRule(rule); err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	return en, nil
}

// compileRule compiles one protocol expression and checks it yields a bool.
func (en *Engine) compileRule(rule Rule) error {
	ast, issues := en.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("expression %q yields %s, want bool", rule.Expression, ast.OutputType())
	}

	prog, err := en.env.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}

	en.programs[rule.ID] = prog
	return nil
}

// Classify returns the correct triage color for p. The first protocol row
// that matches wins. Classify is deterministic and always returns a color.
func (en *Engine) Classify(p patient.Patient, tourniquetApplied bool) Classification {
	vars := facts(p, tourniquetApplied)

	for _, rule := range en.rules {
		matched, err := en.evaluate(rule.ID, vars)
		if err != nil {
			logger.Error("protocol rule evaluation failed", "rule", rule.ID, "error", err)
			continue
		}
		if matched {
			return Classification{
				Color:     rule.Color,
				RuleID:    rule.ID,
				Rationale: rule.rationale(p),
			}
		}
	}

	last := en.rules[len(en.rules)-1]
	return Classification{Color: last.Color, RuleID: last.ID, Rationale: last.rationale(p)}
}

func (en *Engine) evaluate(ruleID string, vars map[string]any) (bool, error) {
	prog, exists := en.programs[ruleID]
	if !exists {
		return false, fmt.Errorf("rule %s is not compiled", ruleID)
	}

	out, _, err := prog.Eval(vars)
	if err != nil {
		return false, err
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %s returned %T, want bool", ruleID, out.Value())
	}
	return matched, nil
}

// Protocol returns a copy of the protocol table in evaluation order.
func (en *Engine) Protocol() []Rule {
	out := make([]Rule, len(en.rules))
	copy(out, en.rules)
	return out
}
