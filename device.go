package trustkit

import "time"

// TrustStatus is the lifecycle state of a device with respect to being
// allowed to authenticate without additional challenge.
type TrustStatus string

const (
	TrustPending TrustStatus = "pending"
	TrustTrusted TrustStatus = "trusted"
	TrustRevoked TrustStatus = "revoked"
	TrustExpired TrustStatus = "expired"
)

// RiskLevel classifies how anomalous a device's registration signals were.
// It is computed by the service; the coordinator only displays it.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Device is a trusted-device record for the account. The fingerprint is the
// natural key: registering the same fingerprint again returns the same ID.
// Nullable service fields are pointers; absent means unknown, not zero.
type Device struct {
	ID          string      `json:"id"`
	Fingerprint string      `json:"fingerprint"`
	DeviceType  string      `json:"device_type"`
	TrustStatus TrustStatus `json:"trust_status"`
	RiskLevel   RiskLevel   `json:"risk_level"`
	IPAddress   string      `json:"ip_address"`
	Location    string      `json:"location,omitempty"`
	LastUsed    time.Time   `json:"last_used"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// IsExpired reports whether a trusted device's trust window has elapsed.
// Expiry is reached only by time or service-side decision; the coordinator
// never writes TrustExpired itself.
func (d *Device) IsExpired(now time.Time) bool {
	if d.TrustStatus == TrustExpired {
		return true
	}
	return d.TrustStatus == TrustTrusted && d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}

// ExposureLevel is a coarse account-wide label derived from how many
// HIGH-risk devices are currently trusted.
type ExposureLevel string

const (
	ExposureLow    ExposureLevel = "Low"
	ExposureMedium ExposureLevel = "Medium"
	ExposureHigh   ExposureLevel = "High"
)

// Insights summarizes the device list for display.
type Insights struct {
	Total         int           `json:"total"`
	Trusted       int           `json:"trusted"`
	Pending       int           `json:"pending"`
	Revoked       int           `json:"revoked"`
	ExposureLevel ExposureLevel `json:"exposure_level"`
}

// ComputeInsights aggregates counts and the exposure label for a device list.
func ComputeInsights(devices []Device) Insights {
	in := Insights{Total: len(devices)}

	highRiskTrusted := 0
	for _, d := range devices {
		switch d.TrustStatus {
		case TrustTrusted:
			in.Trusted++
			if d.RiskLevel == RiskHigh {
				highRiskTrusted++
			}
		case TrustPending:
			in.Pending++
		case TrustRevoked:
			in.Revoked++
		}
	}

	switch {
	case highRiskTrusted >= 2:
		in.ExposureLevel = ExposureHigh
	case highRiskTrusted == 1:
		in.ExposureLevel = ExposureMedium
	default:
		in.ExposureLevel = ExposureLow
	}
	return in
}
