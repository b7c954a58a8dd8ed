package models

import "time"

type RedemptionStatus string

const (
	StatusPending   RedemptionStatus = "pending"
	StatusApproved  RedemptionStatus = "approved"
	StatusDelivered RedemptionStatus = "delivered"
	StatusRejected  RedemptionStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s RedemptionStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

type WarningKind string

const (
	WarningKindWarn   WarningKind = "WARN"
	WarningKindUnwarn WarningKind = "UNWARN"
	WarningKindKick   WarningKind = "KICK"
)

// UnlimitedStock marks a reward that never runs out.
const UnlimitedStock = -1

// MemberRef is a resolved pointer to one member record. Workflows only accept
// refs produced by the identity resolver.
type MemberRef struct {
	GroupID  string
	MemberID string // canonical identifier, also the storage key
}

// Member is one human inside one group
type Member struct {
	GroupID                string
	MemberID               string // canonical, phone-shaped
	LinkedID               string // optional platform alias
	DisplayName            string
	Points                 int64
	LifetimeEarned         int64
	LifetimeSpent          int64
	LifetimeRedeemed       int64
	MessageCount           int64
	MessagesSinceLastPoint int64
	WarningCount           int
	KickCount              int
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
	LastMessageAt          *time.Time
}

// Ref returns the member's canonical reference.
func (m Member) Ref() MemberRef {
	return MemberRef{GroupID: m.GroupID, MemberID: m.MemberID}
}

// WarningEntry is one append-only moderation history row
type WarningEntry struct {
	ID        string
	GroupID   string
	MemberID  string
	Kind      WarningKind
	Reason    string
	Actor     string
	CreatedAt time.Time
}

// OwnedCapability is a premium command held by a member.
type OwnedCapability struct {
	GroupID     string
	MemberID    string
	Name        string
	PricePaid   int64
	UsageCount  int64
	PurchasedAt time.Time
	LastUsedAt  *time.Time
}

// Reward is a catalog entry that can be redeemed for points
type Reward struct {
	GroupID        string
	ID             string
	Name           string
	Description    string
	Cost           int64
	Stock          int64 // UnlimitedStock or >= 0
	IsActive       bool
	TotalPending   int64
	TotalApproved  int64
	TotalDelivered int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InStock reports whether one more unit can be handed out.
func (r Reward) InStock() bool {
	return r.Stock == UnlimitedStock || r.Stock > 0
}

// PremiumCommand is a one-time purchasable capability
type PremiumCommand struct {
	GroupID        string
	Name           string
	Description    string
	Price          int64
	IsAvailable    bool
	TotalPurchases int64
	UniqueBuyers   int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Redemption tracks one request to exchange points for a reward.
type Redemption struct {
	ID            string
	GroupID       string
	RewardID      string
	RewardName    string
	MemberID      string
	PointsCost    int64 // snapshotted at request time
	Status        RedemptionStatus
	Notes         string
	RequestedAt   time.Time
	ProcessedAt   *time.Time
	ProcessedBy   string
	RejectReason  string
	DeliveredAt   *time.Time
	DeliveredBy   string
	DeliveryNotes string
}

// Purchase is the immutable audit record of a capability acquisition
type Purchase struct {
	ID          string
	GroupID     string
	MemberID    string
	CommandName string
	PricePaid   int64
	CreatedAt   time.Time
}

// GroupConfig holds per-group economic knobs
type GroupConfig struct {
	GroupID               string
	MessagesPerPoint      int64
	MaxWarnings           int
	MaxPendingRedemptions int
	PointsName            string
	UpdatedAt             time.Time
}

// GroupStats are aggregate counters kept per group.
type GroupStats struct {
	GroupID             string
	TotalPurchases      int64
	TotalPurchasePoints int64
}

// Contact is one linked-to-canonical pair observed by the transport.
type Contact struct {
	LinkedID    string
	CanonicalID string
	SeenAt      time.Time
}
