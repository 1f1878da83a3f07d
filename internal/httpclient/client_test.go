package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionFollowsRedirectsAndRecordsCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_ga", Value: "GA1.1", Path: "/", MaxAge: 3600})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") == "" {
			t.Error("expected an Accept-Language header")
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/", HttpOnly: true})
		w.Write([]byte(`<html><body><div id="cookie-banner"><button>Akzeptieren</button></div></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	s, err := NewClient("").Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Navigate(ctx, srv.URL+"/"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	observed := s.ObservedCookies()
	if len(observed) != 2 {
		t.Fatalf("observed %d cookies, want 2: %+v", len(observed), observed)
	}
	if observed[0].Name != "_ga" || observed[0].ExpiresAt == nil {
		t.Errorf("first observed cookie = %+v, want persistent _ga", observed[0])
	}
	if !observed[1].Session || !observed[1].HTTPOnly {
		t.Errorf("sessionid should be an http-only session cookie: %+v", observed[1])
	}

	jar, err := s.Cookies(ctx)
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if len(jar) != 2 {
		t.Errorf("jar has %d cookies, want 2", len(jar))
	}
	for _, c := range jar {
		if c.Domain != "127.0.0.1" {
			t.Errorf("cookie %s domain = %q, want request host", c.Name, c.Domain)
		}
	}

	buttons, err := s.QueryAll(ctx, "#cookie-banner button")
	if err != nil || len(buttons) != 1 {
		t.Fatalf("QueryAll = %d, %v; want one button", len(buttons), err)
	}
}

func TestSessionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx := context.Background()
	s, _ := NewClient("").Open(ctx)

	err := s.Navigate(ctx, srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
}

func TestSessionBeforeNavigate(t *testing.T) {
	ctx := context.Background()
	s, _ := NewClient("").Open(ctx)

	if _, err := s.Content(ctx); !errors.Is(err, errNoDocument) {
		t.Errorf("Content before Navigate = %v, want errNoDocument", err)
	}
	cookies, err := s.Cookies(ctx)
	if err != nil || len(cookies) != 0 {
		t.Errorf("Cookies before Navigate = %v, %v", cookies, err)
	}
}
