package domain

import "time"

// SignalType classifies what kind of market movement a signal describes.
type SignalType string

const (
	TypeFunding       SignalType = "funding"
	TypeProductLaunch SignalType = "product_launch"
	TypeInnovation    SignalType = "innovation"
	TypeAcquisition   SignalType = "acquisition"
	TypeIPO           SignalType = "ipo"
	TypeGeneral       SignalType = "general"
)

// Label renders the type for human-facing text ("product launch").
func (t SignalType) Label() string {
	switch t {
	case TypeProductLaunch:
		return "product launch"
	default:
		return string(t)
	}
}

// ApprovalStatus tracks the signal through its review lifecycle.
// Pending is the only non-terminal status.
type ApprovalStatus string

const (
	StatusPending      ApprovalStatus = "pending"
	StatusApproved     ApprovalStatus = "approved"
	StatusAutoApproved ApprovalStatus = "auto_approved"
	StatusRejected     ApprovalStatus = "rejected"
)

// Terminal reports whether the status admits no further approval transitions.
func (s ApprovalStatus) Terminal() bool {
	return s != StatusPending
}

// Tier names the audience a signal is routed to.
type Tier string

const (
	TierPremium Tier = "premium"
	TierFree    Tier = "free"
	TierBoth    Tier = "both"
	TierNone    Tier = "none"
)

// Signal is a scored candidate alert derived from a single article.
type Signal struct {
	ID             string
	Type           SignalType
	Source         string
	Content        string
	Confidence     float64
	DetectedAt     time.Time
	Prediction     string
	Evidence       []string
	ApprovalStatus ApprovalStatus
	TierAssignment Tier
	SentFree       bool
	SentPremium    bool
	ApprovedAt     *time.Time
	Notes          string
}

// Article is a raw feed item offered to the classifier. The dedup ledger
// stores it keyed on a hash of title+source.
type Article struct {
	ID          string
	Title       string
	Description string
	URL         string
	Source      string
	PublishedAt time.Time
}

// Stats aggregates the trailing-window numbers shown to the operator.
type Stats struct {
	Window       time.Duration
	ByStatus     map[ApprovalStatus]int
	PremiumSent  int
	FreeSent     int
	AutoApproved int
}

// Total sums detections across all approval statuses.
func (s Stats) Total() int {
	var n int
	for _, c := range s.ByStatus {
		n += c
	}
	return n
}
