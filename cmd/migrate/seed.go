package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wolfman30/clinic-assistant/internal/triage"
)

// seedDirectory upserts the vocabulary's specializations and roster doctors.
// Existing rows are left untouched.
func seedDirectory(ctx context.Context, db *sql.DB, vocab *triage.Vocabulary) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, spec := range vocab.Specializations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO specializations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			spec.Name,
		); err != nil {
			return 0, fmt.Errorf("insert specialization %s: %w", spec.Name, err)
		}
	}

	inserted := 0
	for _, doc := range vocab.Doctors {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO doctors (name, specialization_id)
			SELECT $1, s.id FROM specializations s WHERE s.name = $2
			ON CONFLICT DO NOTHING`,
			doc.Name, doc.Specialization,
		)
		if err != nil {
			return 0, fmt.Errorf("insert doctor %s: %w", doc.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}
