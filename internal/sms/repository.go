package sms

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
)

// ErrNoCode means no usable two-factor code is currently stored: either
// there is no unconsumed message, or the latest unconsumed message carries
// no 6-digit token. In the latter case the message is left unconsumed so a
// re-sent code can supersede it.
var ErrNoCode = errors.New("no two-factor code available")

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// ExtractCode returns the first standalone 6-digit token in a message
// body, or "" when there is none.
func ExtractCode(body string) string {
	return codePattern.FindString(body)
}

// Repository stores intercepted SMS messages and hands out the two-factor
// codes embedded in them.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Store(ctx context.Context, body string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sms_messages (body)
		VALUES ($1)
		RETURNING id
	`, body).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ConsumeLatestCode selects the most recently received unconsumed message,
// parses it, and marks it used, all in one transaction, so two in-flight
// checkouts can never consume the same code. A message that parses no code
// is not marked used.
func (r *Repository) ConsumeLatestCode(ctx context.Context) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var body string
	err = tx.QueryRowContext(ctx, `
		SELECT id, body
		FROM sms_messages
		WHERE used = FALSE
		ORDER BY received_at DESC, id DESC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&id, &body)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNoCode
		}
		return "", err
	}

	code := ExtractCode(body)
	if code == "" {
		return "", ErrNoCode
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sms_messages SET used = TRUE WHERE id = $1
	`, id); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return code, nil
}
