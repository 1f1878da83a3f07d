package consent

import "github.com/olegrjumin/cookieguard/internal/logging"

// Engine bundles the analysis components built from one rule set.
// An Engine is immutable; reloading rules means building a new one.
type Engine struct {
	Rules      Rules
	Classifier *Classifier
	Profiler   *Profiler
	Sequencer  *Sequencer
	Aggregator *Aggregator
}

// NewEngine wires all components to the given rules
func NewEngine(rules Rules, clock Clock, logger *logging.Logger) *Engine {
	return &Engine{
		Rules:      rules,
		Classifier: NewClassifier(rules.Cookies),
		Profiler:   NewProfiler(rules, logger),
		Sequencer:  NewSequencer(rules, logger),
		Aggregator: NewAggregator(clock),
	}
}

// Evaluate runs all compliance checklists of the engine's rules
func (e *Engine) Evaluate(text string) Compliance {
	return EvaluateAll(text, e.Rules)
}
