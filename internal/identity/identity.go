// Package identity maps raw participant identifiers onto one canonical member
// record per group. Every workflow resolves through here before it opens a
// transaction and passes the resulting models.MemberRef along.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

// DefaultLinkedSuffix is the namespace suffix upstream sometimes appends to
// linked identifiers.
const DefaultLinkedSuffix = "@lid"

const (
	minCanonicalDigits = 3
	maxCanonicalDigits = 20
)

// Subject is everything the transport knows about a participant.
type Subject struct {
	GroupID     string
	CanonicalID string // phone-shaped, may be empty or decorated
	LinkedID    string // platform alias, may be empty
	DisplayName string
}

// Resolver is the single source of truth for member identity.
type Resolver struct {
	store     storage.Store
	directory storage.Directory
	suffix    string
	logger    *slog.Logger
	policy    retry.Policy
	now       func() time.Time
}

type Option func(*Resolver)

// WithDirectory enables best-effort linked-to-canonical lookups.
func WithDirectory(d storage.Directory) Option {
	return func(r *Resolver) { r.directory = d }
}

// WithLinkedSuffix overrides DefaultLinkedSuffix.
func WithLinkedSuffix(suffix string) Option {
	return func(r *Resolver) {
		if strings.TrimSpace(suffix) != "" {
			r.suffix = strings.TrimSpace(suffix)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver builds a Resolver over store.
func NewResolver(store storage.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		suffix: DefaultLinkedSuffix,
		logger: slog.Default(),
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Canonical normalises a phone-shaped identifier: it drops a leading '+',
// any device (":n") or server ("@host") decoration, and returns "" when the
// remainder is not all digits. Linked identifiers never qualify.
func (r *Resolver) Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasSuffix(raw, r.suffix) {
		return ""
	}
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimPrefix(raw, "+")
	if len(raw) < minCanonicalDigits || len(raw) > maxCanonicalDigits {
		return ""
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return raw
}

// LinkedCandidates returns the linked identifier with and without the
// namespace suffix, as-given form first.
func (r *Resolver) LinkedCandidates(linked string) []string {
	linked = strings.TrimSpace(linked)
	if linked == "" {
		return nil
	}
	if bare, ok := strings.CutSuffix(linked, r.suffix); ok {
		if bare == "" {
			return nil
		}
		return []string{linked, bare}
	}
	return []string{linked, linked + r.suffix}
}

// Resolve finds the member addressed by either identifier. The canonical
// lookup wins over the linked one. A supplied canonical id that has no record
// never falls back to the alias: members are keyed by canonical id, so any
// alias hit would belong to someone else.
func (r *Resolver) Resolve(ctx context.Context, groupID, canonical, linked string) (models.MemberRef, error) {
	canonical = r.Canonical(canonical)
	candidates := r.LinkedCandidates(linked)
	if canonical == "" && len(candidates) > 0 {
		if m, ok, err := r.currentHolder(ctx, groupID, candidates); err != nil {
			return models.MemberRef{}, err
		} else if ok {
			return m.Ref(), nil
		}
	}
	m, err := r.lookup(ctx, groupID, canonical, candidates)
	if err != nil {
		return models.MemberRef{}, err
	}
	return m.Ref(), nil
}

func (r *Resolver) lookup(ctx context.Context, groupID, canonical string, linked []string) (models.Member, error) {
	if strings.TrimSpace(groupID) == "" {
		return models.Member{}, apperrors.New(apperrors.CodeInvalidArgument, "group id is required")
	}
	if canonical == "" && len(linked) == 0 {
		return models.Member{}, apperrors.New(apperrors.CodeMemberNotFound, "no identifier supplied")
	}

	var found models.Member
	err := r.store.View(ctx, func(tx storage.Tx) error {
		if canonical != "" {
			m, err := tx.GetMember(ctx, groupID, canonical)
			if err == nil {
				found = m
				return nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		} else {
			m, err := tx.FindMemberByLinkedID(ctx, groupID, linked)
			if err == nil {
				found = m
				return nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
		return apperrors.WithMetadata(apperrors.CodeMemberNotFound, "member not found", map[string]string{
			apperrors.MetaMemberID: canonical,
		})
	})
	if err != nil {
		return models.Member{}, err
	}
	return found, nil
}

// currentHolder asks the contact directory who uses the alias now. The
// directory is fed from live traffic, so it wins over an alias stored on a
// member that has since renamed. ok is false when the directory has no
// answer or the holder has no record yet.
func (r *Resolver) currentHolder(ctx context.Context, groupID string, candidates []string) (models.Member, bool, error) {
	canonical := r.directoryLookup(ctx, candidates)
	if canonical == "" {
		return models.Member{}, false, nil
	}
	m, err := r.lookup(ctx, groupID, canonical, nil)
	if apperrors.CodeOf(err) == apperrors.CodeMemberNotFound {
		return models.Member{}, false, nil
	}
	if err != nil {
		return models.Member{}, false, err
	}
	return m, true, nil
}

// EnsureMember resolves s, creating the member on first sight. New members
// are always keyed by a canonical identifier. When only a linked identifier
// is known the contact directory names its current holder; without an answer
// the stored alias is used, and failing that the subject is Unresolvable.
// A member seen under a new alias takes it over from its previous holder.
func (r *Resolver) EnsureMember(ctx context.Context, s Subject) (models.MemberRef, error) {
	canonical := r.Canonical(s.CanonicalID)
	linked := strings.TrimSpace(s.LinkedID)
	candidates := r.LinkedCandidates(linked)

	if canonical == "" && len(candidates) > 0 {
		canonical = r.directoryLookup(ctx, candidates)
	}

	if canonical == "" {
		m, err := r.lookup(ctx, s.GroupID, "", candidates)
		if err == nil {
			return m.Ref(), nil
		}
		if apperrors.CodeOf(err) != apperrors.CodeMemberNotFound {
			return models.MemberRef{}, err
		}
		return models.MemberRef{}, apperrors.WithMetadata(apperrors.CodeUnresolvable,
			"no canonical identifier for subject", map[string]string{"linked_id": linked})
	}

	m, err := r.lookup(ctx, s.GroupID, canonical, nil)
	if err == nil {
		r.syncLinked(ctx, m, linked)
		return m.Ref(), nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeMemberNotFound {
		return models.MemberRef{}, err
	}

	return retry.OnContention(ctx, r.policy, func(ctx context.Context) (models.MemberRef, error) {
		return r.create(ctx, s.GroupID, canonical, linked, s.DisplayName)
	})
}

func (r *Resolver) create(ctx context.Context, groupID, canonical, linked, displayName string) (models.MemberRef, error) {
	now := r.now().UTC()
	member := models.Member{
		GroupID:     groupID,
		MemberID:    canonical,
		LinkedID:    linked,
		DisplayName: strings.TrimSpace(displayName),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.ReleaseLinkedID(ctx, groupID, r.LinkedCandidates(linked), canonical, now); err != nil {
			return err
		}
		created, err := tx.CreateMember(ctx, member)
		if err != nil {
			return fmt.Errorf("create member: %w", err)
		}
		if !created && linked != "" {
			// Someone else created the record first; the alias is still ours.
			return tx.SetLinkedID(ctx, groupID, canonical, linked, now)
		}
		return nil
	})
	if err != nil {
		return models.MemberRef{}, err
	}
	r.logger.Debug("member ensured", "group_id", groupID, "member_id", canonical)
	return models.MemberRef{GroupID: groupID, MemberID: canonical}, nil
}

func (r *Resolver) directoryLookup(ctx context.Context, candidates []string) string {
	if r.directory == nil {
		return ""
	}
	for _, candidate := range candidates {
		canonical, err := r.directory.LookupCanonical(ctx, candidate)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			r.logger.Warn("contact directory lookup failed", "linked_id", candidate, "error", err)
			return ""
		}
		if c := r.Canonical(canonical); c != "" {
			return c
		}
	}
	return ""
}

// syncLinked records linked as the member's alias when it differs from the
// stored one, taking it away from any previous holder in the same
// transaction. Failures are logged; resolution already succeeded.
func (r *Resolver) syncLinked(ctx context.Context, m models.Member, linked string) {
	candidates := r.LinkedCandidates(linked)
	if len(candidates) == 0 || slices.Contains(candidates, m.LinkedID) {
		return
	}
	_, err := retry.OnContention(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.Update(ctx, func(tx storage.Tx) error {
			current, err := tx.GetMember(ctx, m.GroupID, m.MemberID)
			if err != nil {
				return err
			}
			if slices.Contains(candidates, current.LinkedID) {
				return nil
			}
			now := r.now().UTC()
			released, err := tx.ReleaseLinkedID(ctx, m.GroupID, candidates, m.MemberID, now)
			if err != nil {
				return err
			}
			if released > 0 {
				r.logger.Info("linked id moved to a new holder",
					"group_id", m.GroupID, "member_id", m.MemberID, "linked_id", linked)
			}
			return tx.SetLinkedID(ctx, m.GroupID, m.MemberID, linked, now)
		})
	})
	if err != nil {
		r.logger.Warn("linked id update failed",
			"group_id", m.GroupID, "member_id", m.MemberID, "linked_id", linked, "error", err)
	}
}

// MarkJoined ensures the member exists and is active.
func (r *Resolver) MarkJoined(ctx context.Context, s Subject) (models.MemberRef, error) {
	ref, err := r.EnsureMember(ctx, s)
	if err != nil {
		return models.MemberRef{}, err
	}
	return ref, r.setActive(ctx, ref, true)
}

// MarkDeparted soft-deletes a member. History is kept.
func (r *Resolver) MarkDeparted(ctx context.Context, ref models.MemberRef) error {
	return r.setActive(ctx, ref, false)
}

func (r *Resolver) setActive(ctx context.Context, ref models.MemberRef, active bool) error {
	_, err := retry.OnContention(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.Update(ctx, func(tx storage.Tx) error {
			err := tx.SetMemberActive(ctx, ref.GroupID, ref.MemberID, active, r.now().UTC())
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeMemberNotFound, "member not found")
			}
			return err
		})
	})
	return err
}
