package store

import (
	"context"
)

// HasImport reports whether a journal file with the given content checksum
// has already become a dream.
func (r repo) HasImport(ctx context.Context, checksum string) (bool, error) {
	n, err := r.count(ctx, "has import", `SELECT count(*) FROM journal_imports WHERE checksum = ?`, checksum)
	return n > 0, err
}

// RecordImport remembers that the journal file at path became dream dreamID.
func (r repo) RecordImport(ctx context.Context, checksum, path string, dreamID int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO journal_imports (checksum, path, dream_id, imported_at) VALUES (?, ?, ?, ?)`,
		checksum, path, dreamID, now())
	return wrapErr("record import", err)
}
