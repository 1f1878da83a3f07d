package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

func TestSessionAgainstLocalPage(t *testing.T) {
	// Skip test if running in CI without Chrome
	if os.Getenv("CI") == "true" {
		t.Skip("Skipping browser test in CI")
	}
	if !chromeAvailable() {
		t.Skip("Chrome not installed")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_ga", Value: "GA1.1.1", Path: "/", MaxAge: 3600})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>
			<div id="cookie-banner" style="width:400px;height:100px">
				<p>Wir verwenden Cookies.</p>
				<button id="accept" onclick="document.cookie='consent=1; path=/'">Alle akzeptieren</button>
			</div>
		</body></html>`))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.PoolSize = 1
	b, err := New(opts, nil)
	if err != nil {
		t.Fatalf("Failed to start browser: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}
	defer s.Close()

	if err := s.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	profile := consent.NewProfiler(consent.DefaultRules(), nil).Profile(ctx, s)
	if !profile.Detected() {
		t.Fatal("Expected banner to be detected")
	}

	outcome := consent.NewSequencer(consent.DefaultRules(), nil).Resolve(ctx, s)
	if !outcome.Succeeded || outcome.Action != consent.ActionAccept {
		t.Fatalf("Expected accept click, got %+v", outcome)
	}

	cookies, err := s.Cookies(ctx)
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
	}
	if !names["_ga"] || !names["consent"] {
		t.Errorf("Expected _ga and consent cookies, got %v", names)
	}

	available, total := b.Health()
	if total != 1 || available != 0 {
		t.Errorf("Health = %d/%d while session open, want 0/1", available, total)
	}
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
