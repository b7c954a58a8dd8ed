// Package apperrors provides the typed failure taxonomy returned by the
// points economy.
package apperrors

// Kind is the coarse failure class a caller branches on.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindValidation   Kind = "VALIDATION_FAILED"
	KindContention   Kind = "CONTENTION"
	KindUnresolvable Kind = "UNRESOLVABLE"
	KindInternal     Kind = "INTERNAL"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeMemberNotFound     Code = "MEMBER_NOT_FOUND"
	CodeRewardNotFound     Code = "REWARD_NOT_FOUND"
	CodeRedemptionNotFound Code = "REDEMPTION_NOT_FOUND"
	CodeCommandNotFound    Code = "PREMIUM_COMMAND_NOT_FOUND"

	// Economy validation errors
	CodeInsufficientPoints   Code = "INSUFFICIENT_POINTS"
	CodeRewardInactive       Code = "REWARD_INACTIVE"
	CodeOutOfStock           Code = "OUT_OF_STOCK"
	CodePendingLimitExceeded Code = "PENDING_LIMIT_EXCEEDED"
	CodeAlreadyOwned         Code = "ALREADY_OWNED"
	CodeCommandUnavailable   Code = "PREMIUM_COMMAND_UNAVAILABLE"
	CodeAlreadyProcessed     Code = "REDEMPTION_ALREADY_PROCESSED"
	CodeNotApproved          Code = "REDEMPTION_NOT_APPROVED"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"

	// Store errors
	CodeContention Code = "CONTENTION"

	// Identity errors
	CodeUnresolvable Code = "IDENTITY_UNRESOLVABLE"
)

// Kind maps a code to its failure class.
func (c Code) Kind() Kind {
	switch c {
	case CodeMemberNotFound,
		CodeRewardNotFound,
		CodeRedemptionNotFound,
		CodeCommandNotFound:
		return KindNotFound

	case CodeInsufficientPoints,
		CodeRewardInactive,
		CodeOutOfStock,
		CodePendingLimitExceeded,
		CodeAlreadyOwned,
		CodeCommandUnavailable,
		CodeAlreadyProcessed,
		CodeNotApproved,
		CodeInvalidArgument:
		return KindValidation

	case CodeContention:
		return KindContention

	case CodeUnresolvable:
		return KindUnresolvable

	default:
		return KindInternal
	}
}

// Metadata keys shared by producers and renderers.
const (
	MetaRequired     = "required"
	MetaAvailable    = "available"
	MetaStatus       = "status"
	MetaLimit        = "limit"
	MetaRewardID     = "reward_id"
	MetaRedemptionID = "redemption_id"
	MetaCommand      = "command"
	MetaMemberID     = "member_id"
)
