package db

import (
	"errors"
	"fmt"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	sqlite3 "github.com/mattn/go-sqlite3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// classify turns driver busy/locked failures into Contention so the retry
// wrapper can re-run the whole operation. Domain errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if isBusyError(err) {
		return apperrors.Wrap(apperrors.CodeContention, op, err)
	}
	if op == "tx" || op == "view" {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusyError(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.Code == sqlite3.ErrBusy || mattnErr.Code == sqlite3.ErrLocked
	}
	var moderncErr *msqlite.Error
	if errors.As(err, &moderncErr) {
		code := moderncErr.Code() & 0xff
		return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
	}
	return false
}

func isConstraintError(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.Code == sqlite3.ErrConstraint
	}
	var moderncErr *msqlite.Error
	if errors.As(err, &moderncErr) {
		return moderncErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT
	}
	return false
}
