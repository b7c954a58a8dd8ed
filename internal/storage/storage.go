// Package storage defines persistence contracts for the points economy.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a uniqueness constraint rejected a write.
var ErrConflict = errors.New("record already exists")

// ErrNegativeBalance indicates a point change would leave a balance below zero.
var ErrNegativeBalance = errors.New("balance would go negative")

// Store runs callbacks inside store transactions.
//
// Update takes the write lock when the transaction starts, so every read made
// through tx observes the state the writes commit against. Returning an error
// from fn rolls back every write. A conflicting concurrent writer surfaces as
// an apperrors Contention failure.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Activity is the outcome of recording one message.
type Activity struct {
	MessageCount           int64
	MessagesSinceLastPoint int64
	Points                 int64
	Awarded                bool
}

// RewardCounters are deltas applied to a reward's lifecycle counters.
type RewardCounters struct {
	Pending   int64
	Approved  int64
	Delivered int64
}

// Tx is the set of reads and writes available inside a transaction.
type Tx interface {
	MemberStore
	ModerationStore
	RewardStore
	RedemptionStore
	PremiumStore
	GroupStore
}

// MemberStore persists member records and their balances.
type MemberStore interface {
	GetMember(ctx context.Context, groupID, memberID string) (models.Member, error)
	// FindMemberByLinkedID returns the first member whose linked id equals any candidate.
	FindMemberByLinkedID(ctx context.Context, groupID string, candidates []string) (models.Member, error)
	// CreateMember inserts m unless a record with the same key exists; created reports which.
	CreateMember(ctx context.Context, m models.Member) (created bool, err error)
	SetLinkedID(ctx context.Context, groupID, memberID, linkedID string, at time.Time) error
	// ReleaseLinkedID clears any candidate alias held by a member other than keepMemberID.
	ReleaseLinkedID(ctx context.Context, groupID string, candidates []string, keepMemberID string, at time.Time) (int64, error)
	SetMemberActive(ctx context.Context, groupID, memberID string, active bool, at time.Time) error
	// AddPoints applies delta atomically and bumps lifetime earned or spent by |delta|.
	AddPoints(ctx context.Context, groupID, memberID string, delta int64, at time.Time) (int64, error)
	SetPoints(ctx context.Context, groupID, memberID string, value int64, at time.Time) (int64, error)
	// RecordMessage counts one message and awards a point every messagesPerPoint messages.
	RecordMessage(ctx context.Context, groupID, memberID string, messagesPerPoint int64, at time.Time) (Activity, error)
	IncrementRedeemed(ctx context.Context, groupID, memberID string, at time.Time) error
}

// ModerationStore persists warning counters and history.
type ModerationStore interface {
	AppendWarning(ctx context.Context, entry models.WarningEntry) error
	ListWarnings(ctx context.Context, groupID, memberID string) ([]models.WarningEntry, error)
	IncrementWarnings(ctx context.Context, groupID, memberID string, at time.Time) (int, error)
	ResetWarnings(ctx context.Context, groupID, memberID string, at time.Time) (previous int, err error)
	IncrementKicks(ctx context.Context, groupID, memberID string, at time.Time) (int, error)
}

// RewardStore persists the reward catalog.
type RewardStore interface {
	GetReward(ctx context.Context, groupID, rewardID string) (models.Reward, error)
	ListRewards(ctx context.Context, groupID string, activeOnly bool) ([]models.Reward, error)
	PutReward(ctx context.Context, r models.Reward) error
	AdjustRewardCounters(ctx context.Context, groupID, rewardID string, delta RewardCounters, at time.Time) error
	// ConsumeRewardStock takes one unit; it reports false when none is left.
	ConsumeRewardStock(ctx context.Context, groupID, rewardID string, at time.Time) (bool, error)
}

// RedemptionStore persists redemption requests.
type RedemptionStore interface {
	CreateRedemption(ctx context.Context, r models.Redemption) error
	GetRedemption(ctx context.Context, groupID, redemptionID string) (models.Redemption, error)
	// ResolveRedemptionID expands an id prefix; ErrConflict when it matches more than one.
	ResolveRedemptionID(ctx context.Context, groupID, prefix string) (string, error)
	CountPendingRedemptions(ctx context.Context, groupID, memberID string) (int, error)
	ListRedemptions(ctx context.Context, groupID string, status models.RedemptionStatus, limit int) ([]models.Redemption, error)
	// TransitionRedemption writes r only if the stored status still equals from.
	TransitionRedemption(ctx context.Context, r models.Redemption, from models.RedemptionStatus) (bool, error)
}

// PremiumStore persists premium commands, ownership and purchase audit.
type PremiumStore interface {
	GetPremiumCommand(ctx context.Context, groupID, name string) (models.PremiumCommand, error)
	ListPremiumCommands(ctx context.Context, groupID string) ([]models.PremiumCommand, error)
	PutPremiumCommand(ctx context.Context, c models.PremiumCommand) error
	IncrementCommandPurchases(ctx context.Context, groupID, name string, at time.Time) error
	HasCapability(ctx context.Context, groupID, memberID, name string) (bool, error)
	ListCapabilities(ctx context.Context, groupID, memberID string) ([]models.OwnedCapability, error)
	GrantCapability(ctx context.Context, c models.OwnedCapability) error
	GetPurchase(ctx context.Context, groupID, purchaseID string) (models.Purchase, error)
	CreatePurchase(ctx context.Context, p models.Purchase) error
}

// GroupStore persists per-group configuration and aggregates.
type GroupStore interface {
	GetGroupConfig(ctx context.Context, groupID string) (models.GroupConfig, error)
	PutGroupConfig(ctx context.Context, cfg models.GroupConfig) error
	AddGroupPurchase(ctx context.Context, groupID string, price int64, at time.Time) error
	GetGroupStats(ctx context.Context, groupID string) (models.GroupStats, error)
}

// Directory maps linked identifiers to canonical ones. It is best-effort and
// never participates in a transaction.
type Directory interface {
	LookupCanonical(ctx context.Context, linkedID string) (string, error)
}

// ContactStore persists the pairs a Directory serves.
type ContactStore interface {
	Directory
	PutContact(ctx context.Context, c models.Contact) error
	PurgeContacts(ctx context.Context, olderThan time.Time) (int64, error)
}
