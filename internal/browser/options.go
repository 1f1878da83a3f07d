package browser

import "github.com/chromedp/chromedp"

// Options configures the browser processes
type Options struct {
	PoolSize  int
	ExecPath  string // empty means auto-detect
	UserAgent string
	Headless  bool
	Width     int
	Height    int
}

// DefaultOptions returns headless desktop-sized defaults
func DefaultOptions() Options {
	return Options{
		PoolSize:  2,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Headless:  true,
		Width:     1366,
		Height:    900,
	}
}

// allocatorOptions turns Options into Chrome flags
func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-pings", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("lang", "de-DE"),
		chromedp.WindowSize(o.Width, o.Height),
	}

	if o.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}

	return opts
}
