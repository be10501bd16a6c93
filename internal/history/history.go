// Package history is the local payment-history cache. Every successful fetch
// of the gateway's payment list is upserted here, so the payments view can
// fall back to the last-known records when the gateway is unreachable.
package history

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

type Store struct {
	DB *sql.DB
}

func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS payments (
		reference TEXT PRIMARY KEY,
		external_id TEXT,
		payment_id TEXT,
		user_id TEXT,
		amount REAL,
		response_code INTEGER,
		response_message TEXT,
		status TEXT DEFAULT '01',
		description TEXT,
		created_at TEXT,
		updated_at TEXT,
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.DB.Exec(query)
	if err != nil {
		slog.Error("Error creating schema", "error", err)
		return err
	}
	return nil
}

// Upsert stores the given records, replacing cached rows with the same
// reference. Re-upserting identical records is harmless.
func (s *Store) Upsert(records []models.PaymentRecord) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (reference, external_id, payment_id, user_id, amount, response_code, response_message, status, description, created_at, updated_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(reference) DO UPDATE SET
			external_id = excluded.external_id,
			payment_id = excluded.payment_id,
			user_id = excluded.user_id,
			amount = excluded.amount,
			response_code = excluded.response_code,
			response_message = excluded.response_message,
			status = excluded.status,
			description = excluded.description,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			cached_at = CURRENT_TIMESTAMP
	`
	for _, r := range records {
		if r.Reference == "" {
			continue
		}
		if _, err := tx.Exec(query, r.Reference, r.ExternalID, r.PaymentID, r.UserID, r.Amount, r.ResponseCode, r.ResponseMessage, r.Status, r.Description, r.CreatedAt, r.UpdatedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// List returns the cached records, newest first.
func (s *Store) List() ([]models.PaymentRecord, error) {
	query := `
		SELECT reference, external_id, payment_id, user_id, amount, response_code, COALESCE(response_message, ''), COALESCE(status, '01') as status, COALESCE(description, ''), COALESCE(created_at, ''), COALESCE(updated_at, '')
		FROM payments
		ORDER BY created_at DESC
	`
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		var r models.PaymentRecord
		if err := rows.Scan(&r.Reference, &r.ExternalID, &r.PaymentID, &r.UserID, &r.Amount, &r.ResponseCode, &r.ResponseMessage, &r.Status, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
