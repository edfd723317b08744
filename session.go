package trustkit

import (
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// SuspiciousAfter is how long a session may go without a lastAccess update
// while still active before it is flagged suspicious.
const SuspiciousAfter = 72 * time.Hour

// Session is one authentication session for the account. At most one session
// in a listing has Current set. LastAccess is nil when the service never
// observed activity for the session.
type Session struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	LastAccess *time.Time `json:"last_access,omitempty"`
	Active     bool       `json:"active"`
	Current    bool       `json:"current"`

	// Derived for display, never sent by the service.
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Suspicious bool   `json:"suspicious"`
}

// IsSuspicious reports whether the session is active but has not been used
// for more than 72 hours. A session with no recorded access is not flagged.
func (s *Session) IsSuspicious(now time.Time) bool {
	if !s.Active || s.LastAccess == nil {
		return false
	}
	return now.Sub(*s.LastAccess) > SuspiciousAfter
}

// enrich fills the derived display fields from the raw user agent.
func (s *Session) enrich(now time.Time) {
	s.Suspicious = s.IsSuspicious(now)
	if s.UserAgent == "" {
		return
	}

	parsed := useragent.New(s.UserAgent)

	browser, version := parsed.Browser()
	if version != "" {
		browser = browser + " " + version
	}
	s.Browser = browser

	osInfo := parsed.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os = os + " " + osInfo.Version
	}
	s.OS = os

	switch {
	case parsed.Mobile():
		s.DeviceType = "mobile"
	case parsed.Bot():
		s.DeviceType = "bot"
	case isTablet(s.UserAgent):
		s.DeviceType = "tablet"
	default:
		s.DeviceType = "desktop"
	}
}

// isTablet checks if the user agent indicates a tablet device.
func isTablet(ua string) bool {
	ua = strings.ToLower(ua)
	for _, keyword := range []string{"ipad", "tablet", "playbook", "silk"} {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}
