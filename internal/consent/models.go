package consent

import "time"

// Rating is the tri-state risk category used for cookies and whole evaluations
type Rating string

const (
	RatingRed    Rating = "red"
	RatingYellow Rating = "yellow"
	RatingGreen  Rating = "green"
)

// Purpose strings attached to classified cookies
const (
	PurposeTracking  = "Tracking/Marketing"
	PurposeAnalytics = "Analyse/Statistik"
	PurposeEssential = "Essentiell"
)

// severity orders ratings: red > yellow > green
func (r Rating) severity() int {
	switch r {
	case RatingRed:
		return 2
	case RatingYellow:
		return 1
	default:
		return 0
	}
}

// RawCookie is a cookie as read from the browser jar or a Set-Cookie header,
// before classification
type RawCookie struct {
	Name      string
	Value     string
	Domain    string
	Path      string
	ExpiresAt *time.Time
	HTTPOnly  bool
	Secure    bool
	SameSite  string
	Session   bool
}

// Cookie is a classified cookie. It is never modified after Classify has run.
type Cookie struct {
	Name      string     `json:"name"`
	Domain    string     `json:"domain"`
	Path      string     `json:"path"`
	ExpiresAt *time.Time `json:"expiresAt"`
	HTTPOnly  bool       `json:"httpOnly"`
	Secure    bool       `json:"secure"`
	SameSite  string     `json:"sameSite"`
	SizeBytes int        `json:"sizeBytes"`
	Category  Rating     `json:"category"`
	Purpose   string     `json:"purpose"`
}

// ScriptReference is one external script found in the document.
// IsTracker is reserved and currently always false.
type ScriptReference struct {
	SourceURL string `json:"sourceUrl"`
	IsTracker bool   `json:"isTracker"`
}

// BannerSelectors holds selector descriptors for the elements actually found
type BannerSelectors struct {
	Container []string `json:"container"`
	Accept    []string `json:"accept"`
	Reject    []string `json:"reject"`
	Settings  []string `json:"settings"`
	Close     []string `json:"close"`
}

// BannerBehavior describes how the banner shows up and goes away
type BannerBehavior struct {
	AppearsOn       string `json:"appearsOn"`
	DelayMs         int    `json:"delayMs"`
	Reappears       bool   `json:"reappears"`
	ReappearDelayMs int    `json:"reappearDelayMs"`
	HidesOnAccept   bool   `json:"hidesOnAccept"`
	HidesOnReject   bool   `json:"hidesOnReject"`
	HidesOnSettings bool   `json:"hidesOnSettings"`
}

// CategoryProfile is one toggle/category control of the settings panel
type CategoryProfile struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Required       bool   `json:"required"`
	DefaultState   bool   `json:"defaultState"`
	ToggleSelector string `json:"toggleSelector"`
}

// ConsentSettings summarises the banner's category panel.
// DefaultState and ToggleSelectors are keyed by category name.
type ConsentSettings struct {
	HasCategories      bool              `json:"hasCategories"`
	Categories         []CategoryProfile `json:"categories"`
	DefaultState       map[string]bool   `json:"defaultState"`
	RequiredCategories []string          `json:"requiredCategories"`
	ToggleSelectors    map[string]string `json:"toggleSelectors"`
	SaveButtonSelector string            `json:"saveButtonSelector"`
}

// BannerProfile is the result of profiling a page for a consent banner.
// Everything besides Selectors.Container is only meaningful when a
// container was found.
type BannerProfile struct {
	Selectors       BannerSelectors `json:"selectors"`
	Behavior        BannerBehavior  `json:"behavior"`
	ConsentSettings ConsentSettings `json:"consentSettings"`
}

// Detected reports whether a visible banner container was matched
func (b BannerProfile) Detected() bool {
	return len(b.Selectors.Container) > 0
}

// ComplianceReport is the checklist outcome for one regime
type ComplianceReport struct {
	Required   bool            `json:"required"`
	Checks     map[string]bool `json:"checks"`
	Violations []string        `json:"violations"`
}

// Compliance groups the three regime reports
type Compliance struct {
	GDPR     ComplianceReport `json:"gdpr"`
	EPrivacy ComplianceReport `json:"eprivacy"`
	TTDSG    ComplianceReport `json:"ttdsg"`
}

// Evaluation is the immutable per-scan snapshot
type Evaluation struct {
	ID               string            `json:"id"`
	Domain           string            `json:"domain"`
	URL              string            `json:"url"`
	ScanTimestamp    time.Time         `json:"scanTimestamp"`
	OverallRating    Rating            `json:"overallRating"`
	Explanation      string            `json:"explanation"`
	Cookies          []Cookie          `json:"cookies"`
	BannerHTML       *string           `json:"bannerHtml"`
	PrivacyPolicyURL *string           `json:"privacyPolicyUrl"`
	Scripts          []ScriptReference `json:"scripts"`
	Compliance       Compliance        `json:"compliance"`
	Banner           BannerProfile     `json:"banner"`
	Interaction      Outcome           `json:"interaction"`
	Automation       AutomationPlan    `json:"automation"`
}
