// Package expressions evaluates JMESPath record filters
package expressions

import (
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Evaluator compiles each expression once and caches it
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}

// Validate reports a ConfigurationError for an expression that does not compile
func (e *Evaluator) Validate(expression string) error {
	if _, err := e.getOrCompile(expression); err != nil {
		return errors.NewConfigurationError("invalid filter %q: %v", expression, err)
	}
	return nil
}

// Evaluate runs an expression against arbitrary data
func (e *Evaluator) Evaluate(expression string, data any) (any, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid filter %q: %v", expression, err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

// Matches evaluates a filter against a record's fields. Empty filters match
// everything. Results are truthy the way JMESPath defines it.
func (e *Evaluator) Matches(expression string, fields models.Fields) (bool, error) {
	if expression == "" {
		return true, nil
	}
	result, err := e.Evaluate(expression, fields.Plain())
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// Filter keeps the records the expression matches
func (e *Evaluator) Filter(expression string, records []models.Record) ([]models.Record, error) {
	if expression == "" {
		return records, nil
	}
	if err := e.Validate(expression); err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		ok, err := e.Matches(expression, rec.Fields)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func truthy(result any) bool {
	switch v := result.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
