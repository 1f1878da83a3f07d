package htmlpage

import (
	"context"
	"errors"
	"testing"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

const fixture = `<html><body>
<div id="cmp" class="cookie-banner" style="position: fixed">
  <h2>Cookies</h2>
  <p>Wir verwenden <b>Cookies</b>.</p>
  <script>var x = 1;</script>
  <div hidden><p>verborgen</p></div>
  <label><input type="checkbox" id="stats" checked disabled> Statistik</label>
  <button class="btn accept">Alle akzeptieren</button>
</div>
<div class="gone" style="display:none"><button class="inner">x</button></div>
<div class="ghost" style="opacity: 0; width: 0px"></div>
</body></html>`

func first(t *testing.T, p *Page, selector string) consent.Element {
	t.Helper()
	els, err := p.QueryAll(context.Background(), selector)
	if err != nil || len(els) == 0 {
		t.Fatalf("QueryAll(%q) = %d, %v", selector, len(els), err)
	}
	return els[0]
}

func TestText(t *testing.T) {
	p, err := ParseString(fixture)
	if err != nil {
		t.Fatal(err)
	}

	text, _ := first(t, p, "#cmp").Text(context.Background())
	want := "Cookies\nWir verwenden Cookies.\nStatistik\nAlle akzeptieren"
	if text != want {
		t.Errorf("Text =\n%q\nwant\n%q", text, want)
	}
}

func TestStyle(t *testing.T) {
	p, err := ParseString(fixture)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		selector    string
		wantVisible bool
	}{
		{"#cmp", true},
		{".inner", false},
		{".ghost", false},
		{"#stats", true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			v, _ := first(t, p, tt.selector).Style(context.Background())
			visible := v.Display != "none" && v.Visibility != "hidden" && v.Opacity > 0 && v.Width > 0 && v.Height > 0
			if visible != tt.wantVisible {
				t.Errorf("visible = %v (%+v), want %v", visible, v, tt.wantVisible)
			}
		})
	}
}

func TestDescribeAndClick(t *testing.T) {
	p, err := ParseString(fixture)
	if err != nil {
		t.Fatal(err)
	}

	info, _ := first(t, p, "#stats").Describe(context.Background())
	if info.Tag != "input" || info.Type != "checkbox" || !info.Checked || !info.Disabled {
		t.Errorf("Describe = %+v", info)
	}

	var clicked consent.ElementInfo
	p.OnClick(func(ctx context.Context, info consent.ElementInfo) error {
		clicked = info
		return nil
	})
	if err := first(t, p, ".accept").Click(context.Background()); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if clicked.Tag != "button" || len(p.Clicks()) != 1 {
		t.Errorf("clicked = %+v, clicks = %v", clicked, p.Clicks())
	}

	boom := errors.New("boom")
	p.OnClick(func(ctx context.Context, info consent.ElementInfo) error { return boom })
	if err := first(t, p, ".accept").Click(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Click error = %v, want hook error", err)
	}
}

func TestQueryAllInvalidSelector(t *testing.T) {
	p, _ := ParseString("<p>x</p>")
	if _, err := p.QueryAll(context.Background(), "[[["); err == nil {
		t.Error("expected an error for an invalid selector")
	}
}
