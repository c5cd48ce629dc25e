// Package rules provides the CEL-Go based watch rule engine. Watch rules
// are operator-defined alert conditions evaluated against every scored
// report; they decide alerting only and never influence the risk score.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-intel/kite/internal/domain"
)

// Engine compiles and evaluates watch rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.WatchRule
	Program cel.Program
}

// NewEngine creates a new watch rule engine.
func NewEngine() (*Engine, error) {
	// CEL environment exposing the scored-report view
	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("level", cel.StringType),
		cel.Variable("report_count", cel.IntType),
		cel.Variable("identifier_type", cel.StringType),
		cel.Variable("identifier_value", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("ai_is_scam", cel.BoolType),
		cel.Variable("ai_confidence", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (e *Engine) ValidateRule(rule *domain.WatchRule) error {
	if rule == nil {
		return fmt.Errorf("watch rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.WatchRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(rules []*domain.WatchRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate runs every loaded rule against a report event and returns the
// rules that matched. A rule that errors at runtime is skipped; one bad
// rule must not silence the rest.
func (e *Engine) Evaluate(event *domain.ReportEvent) []domain.WatchMatch {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"score":            int64(event.RiskScore),
		"level":            string(event.RiskLevel),
		"report_count":     int64(event.ReportCount),
		"identifier_type":  string(event.IdentifierType),
		"identifier_value": event.IdentifierValue,
		"category":         event.Category,
		"ai_is_scam":       event.AIIsScam,
		"ai_confidence":    event.AIConfidence,
	}

	var matches []domain.WatchMatch
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			matches = append(matches, domain.WatchMatch{
				RuleID:   rule.Rule.ID,
				RuleName: rule.Rule.Name,
				Reason:   rule.Rule.Expression,
			})
		}
	}

	return matches
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules swaps the loaded set for the given rules atomically.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(rules []*domain.WatchRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// GetLoadedRules returns the currently loaded rules.
func (e *Engine) GetLoadedRules() []*domain.WatchRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.WatchRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.WatchRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
