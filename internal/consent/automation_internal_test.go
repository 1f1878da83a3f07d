package consent

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubElement is a visible control whose clicks fail a set number of times
type stubElement struct {
	failures int
	clicks   int
}

func (e *stubElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	return nil, nil
}
func (e *stubElement) Text(ctx context.Context) (string, error) { return "OK", nil }
func (e *stubElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (e *stubElement) Style(ctx context.Context) (Visibility, error) {
	return Visibility{Display: "block", Visibility: "visible", Opacity: 1, Width: 80, Height: 20}, nil
}
func (e *stubElement) Describe(ctx context.Context) (ElementInfo, error) {
	return ElementInfo{Tag: "button", Classes: []string{"accept"}}, nil
}
func (e *stubElement) OuterHTML(ctx context.Context) (string, error) { return "<button>OK</button>", nil }
func (e *stubElement) Click(ctx context.Context) error {
	e.clicks++
	if e.clicks <= e.failures {
		return errors.New("not clickable yet")
	}
	return nil
}

// stubPage matches only the accept pattern
type stubPage struct {
	accept  string
	element *stubElement
}

func (p *stubPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	if selector == p.accept {
		return []Element{p.element}, nil
	}
	return nil, nil
}
func (p *stubPage) Content(ctx context.Context) (string, error) { return "", nil }

func TestPerformWaitsBetweenAttempts(t *testing.T) {
	rules := DefaultRules()
	rules.Automation.Fallback = nil

	tests := []struct {
		name       string
		failures   int
		wantClicks int
		wantDelays int
		wantOK     bool
	}{
		{"first attempt", 0, 1, 0, true},
		{"second attempt", 1, 2, 1, true},
		{"never", 10, 3, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := NewSequencer(rules, nil)
			var delays []time.Duration
			seq.sleep = func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}
			el := &stubElement{failures: tt.failures}
			page := &stubPage{accept: rules.Automation.Accept, element: el}

			out := seq.Perform(context.Background(), page, BannerProfile{}, ActionAccept)

			if out.Succeeded != tt.wantOK {
				t.Errorf("outcome = %+v, want succeeded=%v", out, tt.wantOK)
			}
			if el.clicks != tt.wantClicks {
				t.Errorf("clicks = %d, want %d", el.clicks, tt.wantClicks)
			}
			if len(delays) != tt.wantDelays {
				t.Fatalf("delays = %v, want %d", delays, tt.wantDelays)
			}
			for _, d := range delays {
				if d != time.Second {
					t.Errorf("delay = %v, want 1s", d)
				}
			}
		})
	}
}

func TestPerformStopsWhenContextEnds(t *testing.T) {
	rules := DefaultRules()
	seq := NewSequencer(rules, nil)
	el := &stubElement{failures: 10}
	page := &stubPage{accept: rules.Automation.Accept, element: el}

	ctx, cancel := context.WithCancel(context.Background())
	seq.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	out := seq.Perform(ctx, page, BannerProfile{}, ActionAccept)

	if out.Action != ActionNone || out.Succeeded || el.clicks != 1 {
		t.Errorf("outcome = %+v after %d clicks, want a single failed click", out, el.clicks)
	}
}
