package consent_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

func fastRules() consent.Rules {
	rules := consent.DefaultRules()
	rules.Automation.RetryDelayMs = 0
	return rules
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		fixture      string
		wantAction   consent.Action
		wantClicks   []string
		wantAttempt  bool
		wantSelector string
	}{
		{
			name: "accept preferred over reject",
			fixture: `<html><body><div class="consent">
				<button id="deny">Alle ablehnen</button>
				<button id="allow">Alle akzeptieren</button></div></body></html>`,
			wantAction:   consent.ActionAccept,
			wantClicks:   []string{"#allow"},
			wantAttempt:  true,
			wantSelector: "#allow",
		},
		{
			name: "reject when no accept control",
			fixture: `<html><body>
				<a href="#" class="btn decline">Decline</a>
				<button>Mehr erfahren</button></body></html>`,
			wantAction:   consent.ActionReject,
			wantClicks:   []string{".btn.decline"},
			wantAttempt:  true,
			wantSelector: ".btn.decline",
		},
		{
			name: "input buttons are labelled by value",
			fixture: `<html><body><form>
				<input type="submit" id="ok" value="I agree"></form></body></html>`,
			wantAction:   consent.ActionAccept,
			wantClicks:   []string{"#ok"},
			wantAttempt:  true,
			wantSelector: "#ok",
		},
		{
			name:        "nothing to click",
			fixture:     `<html><body><button>Weiter lesen</button></body></html>`,
			wantAction:  consent.ActionNone,
			wantClicks:  nil,
			wantAttempt: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mustPage(t, tt.fixture)
			seq := consent.NewSequencer(fastRules(), nil)

			out := seq.Resolve(context.Background(), page)

			if out.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", out.Action, tt.wantAction)
			}
			if out.Attempted != tt.wantAttempt {
				t.Errorf("attempted = %v, want %v", out.Attempted, tt.wantAttempt)
			}
			if out.Succeeded != tt.wantAttempt {
				t.Errorf("succeeded = %v, want %v", out.Succeeded, tt.wantAttempt)
			}
			if out.Selector != tt.wantSelector {
				t.Errorf("selector = %q, want %q", out.Selector, tt.wantSelector)
			}
			if got := page.Clicks(); !reflect.DeepEqual(got, tt.wantClicks) {
				t.Errorf("clicks = %v, want %v", got, tt.wantClicks)
			}
		})
	}
}

func TestResolveClickFailureIsAnOutcome(t *testing.T) {
	page := mustPage(t, `<html><body><button id="accept">Accept</button></body></html>`)
	page.OnClick(func(ctx context.Context, info consent.ElementInfo) error {
		return errors.New("element is not clickable")
	})

	out := consent.NewSequencer(fastRules(), nil).Resolve(context.Background(), page)

	if !out.Attempted {
		t.Error("expected the click to be attempted")
	}
	if out.Succeeded {
		t.Error("expected the click to fail")
	}
	if out.Action != consent.ActionNone {
		t.Errorf("failed click must count as no action, got %q", out.Action)
	}
	if !strings.Contains(out.Reason, "not clickable") {
		t.Errorf("reason should carry the click error, got %q", out.Reason)
	}
}

func TestResolveInvalidSelectorIsAnOutcome(t *testing.T) {
	rules := fastRules()
	rules.Interaction.Clickables = "button[[["

	out := consent.NewSequencer(rules, nil).Resolve(context.Background(), mustPage(t, `<button>Accept</button>`))

	if out.Attempted || out.Action != consent.ActionNone || out.Reason == "" {
		t.Errorf("unexpected outcome for failing query: %+v", out)
	}
}

func TestRetryPolicyChain(t *testing.T) {
	policy := consent.NewSequencer(consent.DefaultRules(), nil).Policy()

	if policy.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", policy.Attempts)
	}
	if policy.Delay.Milliseconds() != 1000 {
		t.Errorf("delay = %v, want 1s", policy.Delay)
	}

	tests := []struct {
		start consent.Action
		want  []consent.Action
	}{
		{consent.ActionAccept, []consent.Action{consent.ActionAccept, consent.ActionReject, consent.ActionSettings, consent.ActionClose}},
		{consent.ActionReject, []consent.Action{consent.ActionReject, consent.ActionSettings, consent.ActionClose}},
		{consent.ActionClose, []consent.Action{consent.ActionClose}},
	}
	for _, tt := range tests {
		if got := policy.Chain(tt.start); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Chain(%s) = %v, want %v", tt.start, got, tt.want)
		}
	}

	cyclic := consent.RetryPolicy{Fallback: map[consent.Action]consent.Action{
		consent.ActionAccept: consent.ActionReject,
		consent.ActionReject: consent.ActionAccept,
	}}
	if got := cyclic.Chain(consent.ActionAccept); len(got) != 2 {
		t.Errorf("cyclic chain should stop at repeats, got %v", got)
	}
}

func TestPerformFallsBackAlongChain(t *testing.T) {
	page := mustPage(t, `<html><body><div id="cookie-box">
		<button class="accept" style="display:none">Accept</button>
		<button class="reject-all">Reject all</button>
	</div></body></html>`)

	seq := consent.NewSequencer(fastRules(), nil)
	profile := consent.NewProfiler(fastRules(), nil).Profile(context.Background(), page)

	out := seq.Perform(context.Background(), page, profile, consent.ActionAccept)

	if !out.Succeeded || out.Action != consent.ActionReject {
		t.Fatalf("expected fallback to reject, got %+v", out)
	}
	if got := page.Clicks(); !reflect.DeepEqual(got, []string{".reject-all"}) {
		t.Errorf("clicks = %v", got)
	}
}

func TestPerformGivesUpWithoutTargets(t *testing.T) {
	page := mustPage(t, `<html><body><p>No banner</p></body></html>`)
	seq := consent.NewSequencer(fastRules(), nil)

	out := seq.Perform(context.Background(), page, consent.BannerProfile{}, consent.ActionAccept)

	if out.Succeeded || out.Attempted || out.Action != consent.ActionNone {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if len(page.Clicks()) != 0 {
		t.Errorf("nothing should be clicked, got %v", page.Clicks())
	}
}

func TestPlan(t *testing.T) {
	page := mustPage(t, `<html><body>
		<button class="btn allow-all">OK</button>
		<button id="only-needed" class="necessary">Nur notwendige</button>
	</body></html>`)

	plan := consent.NewSequencer(consent.DefaultRules(), nil).Plan(context.Background(), page)

	want := map[consent.Action][]consent.ClickStep{
		consent.ActionAccept:    {{Selector: ".btn.allow-all", Action: "click"}},
		consent.ActionReject:    {},
		consent.ActionEssential: {{Selector: "#only-needed", Action: "click"}},
		consent.ActionSettings:  {},
	}
	if !reflect.DeepEqual(plan.Sequences, want) {
		t.Errorf("sequences = %+v\nwant %+v", plan.Sequences, want)
	}
	if plan.Retry.Attempts != 3 || plan.Retry.Fallback[consent.ActionSettings] != consent.ActionClose {
		t.Errorf("unexpected retry policy: %+v", plan.Retry)
	}
}

func TestPerformRetriesFailingClick(t *testing.T) {
	const fixture = `<html><body><div id="cookie-box">
		<button class="accept-all">Weiter</button>
	</div></body></html>`

	tests := []struct {
		name        string
		failures    int
		wantClicks  int
		wantSuccess bool
		wantAction  consent.Action
	}{
		{"succeeds on third attempt", 2, 3, true, consent.ActionAccept},
		{"succeeds on second attempt", 1, 2, true, consent.ActionAccept},
		{"fails on every attempt", 5, 3, false, consent.ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mustPage(t, fixture)
			calls := 0
			page.OnClick(func(ctx context.Context, info consent.ElementInfo) error {
				calls++
				if calls <= tt.failures {
					return errors.New("element is covered")
				}
				return nil
			})

			out := consent.NewSequencer(fastRules(), nil).Perform(context.Background(), page, consent.BannerProfile{}, consent.ActionAccept)

			if got := len(page.Clicks()); got != tt.wantClicks {
				t.Errorf("clicks = %d, want %d", got, tt.wantClicks)
			}
			if out.Succeeded != tt.wantSuccess || out.Action != tt.wantAction {
				t.Errorf("outcome = %+v, want succeeded=%v action=%s", out, tt.wantSuccess, tt.wantAction)
			}
			if !tt.wantSuccess && !strings.Contains(out.Reason, "element is covered") {
				t.Errorf("reason = %q, want the click error", out.Reason)
			}
		})
	}
}

func TestOutcomeResolved(t *testing.T) {
	tests := []struct {
		out  consent.Outcome
		want bool
	}{
		{consent.Outcome{Succeeded: true, Action: consent.ActionAccept}, true},
		{consent.Outcome{Succeeded: true, Action: consent.ActionReject}, true},
		{consent.Outcome{Succeeded: true, Action: consent.ActionSettings}, false},
		{consent.Outcome{Succeeded: true, Action: consent.ActionClose}, false},
		{consent.Outcome{Succeeded: false, Action: consent.ActionAccept}, false},
		{consent.Outcome{Action: consent.ActionNone}, false},
	}

	for _, tt := range tests {
		if got := tt.out.Resolved(); got != tt.want {
			t.Errorf("Resolved(%+v) = %v, want %v", tt.out, got, tt.want)
		}
	}
}

func TestRetryPolicyJSONUsesMilliseconds(t *testing.T) {
	policy := consent.NewSequencer(consent.DefaultRules(), nil).Policy()

	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"retryDelayMs":1000`) || !strings.Contains(string(data), `"attempts":3`) {
		t.Errorf("json = %s", data)
	}

	var back consent.RetryPolicy
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, policy) {
		t.Errorf("round trip = %+v, want %+v", back, policy)
	}
}
