package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ClickStep is one step of an automated click sequence
type ClickStep struct {
	Selector string `json:"selector"`
	Action   string `json:"action"`
}

// RetryPolicy is how often and how patiently an action is retried,
// and which action to try next when its target never becomes clickable
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Fallback map[Action]Action
}

// retryPolicyJSON carries the delay in milliseconds
type retryPolicyJSON struct {
	Attempts     int               `json:"attempts"`
	RetryDelayMs int64             `json:"retryDelayMs"`
	Fallback     map[Action]Action `json:"fallback"`
}

// MarshalJSON writes the delay as retryDelayMs
func (p RetryPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(retryPolicyJSON{
		Attempts:     p.Attempts,
		RetryDelayMs: p.Delay.Milliseconds(),
		Fallback:     p.Fallback,
	})
}

// UnmarshalJSON reads the form written by MarshalJSON
func (p *RetryPolicy) UnmarshalJSON(data []byte) error {
	var w retryPolicyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = RetryPolicy{
		Attempts: w.Attempts,
		Delay:    time.Duration(w.RetryDelayMs) * time.Millisecond,
		Fallback: w.Fallback,
	}
	return nil
}

// Chain returns the action followed by its fallbacks, without repeats
func (p RetryPolicy) Chain(start Action) []Action {
	chain := []Action{start}
	seen := map[Action]bool{start: true}
	for next, ok := p.Fallback[start]; ok && !seen[next]; next, ok = p.Fallback[next] {
		chain = append(chain, next)
		seen[next] = true
	}
	return chain
}

// AutomationPlan is the click sequences found on a page plus the policy
// used to execute them
type AutomationPlan struct {
	Sequences map[Action][]ClickStep `json:"sequences"`
	Retry     RetryPolicy            `json:"retry"`
}

// Policy returns the configured retry policy
func (s *Sequencer) Policy() RetryPolicy {
	fallback := make(map[Action]Action, len(s.automation.Fallback))
	for from, to := range s.automation.Fallback {
		fallback[Action(from)] = Action(to)
	}

	attempts := s.automation.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	return RetryPolicy{
		Attempts: attempts,
		Delay:    time.Duration(s.automation.RetryDelayMs) * time.Millisecond,
		Fallback: fallback,
	}
}

// patternFor returns the class-pattern selector for an action
func (s *Sequencer) patternFor(action Action) string {
	switch action {
	case ActionAccept:
		return s.automation.Accept
	case ActionReject:
		return s.automation.Reject
	case ActionEssential:
		return s.automation.Essential
	case ActionSettings:
		return s.automation.Settings
	default:
		return ""
	}
}

// Plan derives click sequences from class-name patterns. Each sequence
// holds the first matching element, if any.
func (s *Sequencer) Plan(ctx context.Context, page Page) AutomationPlan {
	plan := AutomationPlan{
		Sequences: make(map[Action][]ClickStep, 4),
		Retry:     s.Policy(),
	}

	for _, action := range []Action{ActionAccept, ActionReject, ActionEssential, ActionSettings} {
		steps := []ClickStep{}
		if pattern := s.patternFor(action); pattern != "" {
			if matches, err := page.QueryAll(ctx, pattern); err == nil && len(matches) > 0 {
				if info, err := matches[0].Describe(ctx); err == nil {
					steps = append(steps, ClickStep{Selector: DeriveSelector(info), Action: "click"})
				}
			}
		}
		plan.Sequences[action] = steps
	}

	return plan
}

// targets lists the selectors to try for an action: those the profiler
// found first, then the class pattern
func (s *Sequencer) targets(profile BannerProfile, action Action) []string {
	var found []string
	switch action {
	case ActionAccept:
		found = profile.Selectors.Accept
	case ActionReject:
		found = profile.Selectors.Reject
	case ActionSettings:
		found = profile.Selectors.Settings
	case ActionClose:
		found = profile.Selectors.Close
	}

	out := append([]string{}, found...)
	if pattern := s.patternFor(action); pattern != "" {
		out = append(out, pattern)
	}
	return out
}

// Perform executes an action with the retry policy. When no target of the
// action becomes clickable within the allowed attempts, the next action of
// the fallback chain is tried.
func (s *Sequencer) Perform(ctx context.Context, page Page, profile BannerProfile, action Action) Outcome {
	policy := s.Policy()
	last := Outcome{Action: ActionNone, Reason: fmt.Sprintf("no clickable target for %s", action)}

	for _, step := range policy.Chain(action) {
		selectors := s.targets(profile, step)
		if len(selectors) == 0 {
			continue
		}

		for attempt := 1; attempt <= policy.Attempts; attempt++ {
			if el, selector, ok := s.firstClickable(ctx, page, selectors); ok {
				out := s.click(ctx, el, step)
				if out.Selector == "" {
					out.Selector = selector
				}
				if out.Succeeded {
					return out
				}
				last = out
			}

			if attempt < policy.Attempts {
				if err := s.sleep(ctx, policy.Delay); err != nil {
					return Outcome{Attempted: last.Attempted, Action: ActionNone, Reason: err.Error()}
				}
			}
		}

		s.logger.Debug("Action exhausted retries", "action", step, "attempts", policy.Attempts)
	}

	last.Action = ActionNone
	return last
}

// firstClickable returns the first visible element matched by any selector
func (s *Sequencer) firstClickable(ctx context.Context, page Page, selectors []string) (Element, string, bool) {
	for _, selector := range selectors {
		matches, err := page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, el := range matches {
			if isShown(ctx, el) {
				return el, selector, true
			}
		}
	}
	return nil, "", false
}
