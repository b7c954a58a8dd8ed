package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

// PutContact records an observed linked-to-canonical pair
func (db *DB) PutContact(ctx context.Context, c models.Contact) error {
	linkedID := strings.TrimSpace(c.LinkedID)
	canonicalID := strings.TrimSpace(c.CanonicalID)
	if linkedID == "" || canonicalID == "" {
		return fmt.Errorf("linked and canonical ids are required")
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO contacts (linked_id, canonical_id, seen_at) VALUES (?, ?, ?)
		 ON CONFLICT(linked_id) DO UPDATE SET
		   canonical_id = excluded.canonical_id,
		   seen_at = excluded.seen_at`,
		linkedID, canonicalID, toMillis(c.SeenAt),
	)
	if err != nil {
		return classify("put contact", err)
	}
	return nil
}

// LookupCanonical resolves a linked identifier through the contact directory
func (db *DB) LookupCanonical(ctx context.Context, linkedID string) (string, error) {
	var canonicalID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT canonical_id FROM contacts WHERE linked_id = ?`, strings.TrimSpace(linkedID),
	).Scan(&canonicalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", classify("lookup contact", err)
	}
	return canonicalID, nil
}

// PurgeContacts deletes pairs not seen since olderThan
func (db *DB) PurgeContacts(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM contacts WHERE seen_at < ?`, toMillis(olderThan),
	)
	if err != nil {
		return 0, classify("purge contacts", err)
	}
	return result.RowsAffected()
}
