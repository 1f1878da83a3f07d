package htmldoc

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		html        string
		wantPrivacy string
		wantScripts []string
	}{
		{
			name: "relative privacy link and scripts",
			html: `<html><head>
				<script src="/js/app.js"></script>
				<script>window.dataLayer = [];</script>
				<script src="https://www.googletagmanager.com/gtag/js?id=G-1"></script>
			</head><body>
				<a href="/impressum">Impressum</a>
				<a href="/datenschutz">Datenschutz</a>
				<a href="/privacy">Privacy</a>
			</body></html>`,
			wantPrivacy: "https://example.com/datenschutz",
			wantScripts: []string{"https://example.com/js/app.js", "https://www.googletagmanager.com/gtag/js?id=G-1"},
		},
		{
			name:        "uppercase marker",
			html:        `<a href="https://legal.example.net/PRIVACY-Policy">policy</a>`,
			wantPrivacy: "https://legal.example.net/PRIVACY-Policy",
		},
		{
			name: "nothing found",
			html: `<p>hello</p><script src="  "></script>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParser("https://example.com/")
			if err != nil {
				t.Fatal(err)
			}
			doc, err := p.ParseString(tt.html)
			if err != nil {
				t.Fatalf("ParseString: %v", err)
			}
			if doc.PrivacyPolicyURL != tt.wantPrivacy {
				t.Errorf("PrivacyPolicyURL = %q, want %q", doc.PrivacyPolicyURL, tt.wantPrivacy)
			}
			if len(doc.Scripts) != len(tt.wantScripts) {
				t.Fatalf("got %d scripts, want %d: %+v", len(doc.Scripts), len(tt.wantScripts), doc.Scripts)
			}
			for i, want := range tt.wantScripts {
				if doc.Scripts[i].SourceURL != want || doc.Scripts[i].IsTracker {
					t.Errorf("script %d = %+v, want %s", i, doc.Scripts[i], want)
				}
			}
		})
	}
}
