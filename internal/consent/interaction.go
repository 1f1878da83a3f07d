package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/olegrjumin/cookieguard/internal/logging"
)

// Action is a consent interaction
type Action string

const (
	ActionAccept    Action = "accept"
	ActionReject    Action = "reject"
	ActionSettings  Action = "settings"
	ActionClose     Action = "close"
	ActionEssential Action = "essential"
	ActionNone      Action = "none"
)

// Outcome is the result of an interaction attempt. Failures are reported
// here instead of being returned as errors so a scan can always continue.
type Outcome struct {
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Action    Action `json:"action"`
	Selector  string `json:"selector,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Resolved reports whether consent was actually given or refused.
// Opening a settings panel or closing the banner does neither.
func (o Outcome) Resolved() bool {
	return o.Succeeded && (o.Action == ActionAccept || o.Action == ActionReject)
}

// Sequencer resolves consent banners by clicking their controls
type Sequencer struct {
	interaction InteractionRules
	automation  AutomationRules
	logger      *logging.Logger

	// sleep waits between retries of Perform
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSequencer creates a sequencer from the rule set
func NewSequencer(rules Rules, logger *logging.Logger) *Sequencer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sequencer{
		interaction: rules.Interaction,
		automation:  rules.Automation,
		logger:      logger.With("component", "interaction_sequencer"),
		sleep:       sleepContext,
	}
}

// Resolve clicks the first control whose label matches an accept keyword,
// or failing that a reject keyword. It never returns an error: query and
// click failures end up in the Outcome reason.
func (s *Sequencer) Resolve(ctx context.Context, page Page) Outcome {
	controls, err := page.QueryAll(ctx, s.interaction.Clickables)
	if err != nil {
		s.logger.Warn("Consent interaction failed", "stage", "query", "error", err)
		return Outcome{Action: ActionNone, Reason: fmt.Sprintf("query controls: %v", err)}
	}
	if len(controls) == 0 {
		return Outcome{Action: ActionNone, Reason: "no clickable controls"}
	}

	labels := make([]string, len(controls))
	for i, control := range controls {
		label, err := elementLabel(ctx, control)
		if err != nil {
			s.logger.Debug("Reading control label failed", "error", err)
			continue
		}
		labels[i] = label
	}

	for _, step := range []struct {
		action   Action
		keywords []string
	}{
		{ActionAccept, s.interaction.Accept},
		{ActionReject, s.interaction.Reject},
	} {
		for i, control := range controls {
			if !containsAny(labels[i], step.keywords) {
				continue
			}
			return s.click(ctx, control, step.action)
		}
	}

	return Outcome{Action: ActionNone, Reason: "no consent control found"}
}

// click performs a single best-effort click
func (s *Sequencer) click(ctx context.Context, el Element, action Action) Outcome {
	out := Outcome{Attempted: true, Action: action}
	if info, err := el.Describe(ctx); err == nil {
		out.Selector = DeriveSelector(info)
	}

	if err := el.Click(ctx); err != nil {
		s.logger.Warn("Consent interaction failed",
			"stage", "click",
			"action", action,
			"selector", out.Selector,
			"error", err,
		)
		out.Action = ActionNone
		out.Reason = fmt.Sprintf("click %s: %v", action, err)
		return out
	}

	out.Succeeded = true
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
