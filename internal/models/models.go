package models

import "time"

// Provider identifies one of the two linkable third-party services.
// Disconnect and token storage operate on this closed set, never on a
// free-form string.
type Provider string

const (
	ProviderGoogle     Provider = "google"
	ProviderSalesforce Provider = "salesforce"
)

// ParseProvider validates a service name from the API boundary.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(s) {
	case ProviderGoogle, ProviderSalesforce:
		return Provider(s), true
	default:
		return "", false
	}
}

// UserProfile is a registered person, keyed by email.
type UserProfile struct {
	Email         string    `json:"email"`
	NameKanji     string    `json:"name_kanji"`
	NameAlphabet  string    `json:"name_alphabet"`
	DefaultTiming string    `json:"default_timing"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PasscodeChallenge is a short-lived one-time code stored per email.
// The code itself is never stored, only its argon2 hash.
type PasscodeChallenge struct {
	Email         string    `json:"email"`
	CodeHash      string    `json:"code_hash"`
	CodeSalt      string    `json:"code_salt"`
	PepperVersion int       `json:"pepper_version"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (c *PasscodeChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ProviderToken is the stored credential for one linked provider account.
// ExpiresAt is zero for Salesforce, which has no expiry field and is
// refreshed reactively on 401. InstanceURL is set for Salesforce only.
type ProviderToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	InstanceURL  string    `json:"instance_url,omitempty"`
}

// Expired reports whether the recorded expiry has passed. Tokens without a
// recorded expiry never report expired.
func (t *ProviderToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Meeting is one calendar event relayed to the frontend.
type Meeting struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Attendees int    `json:"attendees"`
}

// Opportunity is one CRM record relayed to the frontend.
type Opportunity struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AccountName string  `json:"accountName"`
	Amount      float64 `json:"amount"`
	CloseDate   string  `json:"closeDate"`
	StageName   string  `json:"stageName"`
}

// KPIMetric is one current/target pair on the KPI dashboard.
type KPIMetric struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// KPISnapshot is the dashboard payload read from the KPI sheet.
type KPISnapshot struct {
	UserPartnerMeeting KPIMetric `json:"userPartnerMeeting"`
	CxOVisit           KPIMetric `json:"cxoVisit"`
	Quarter            string    `json:"quarter"`
}
