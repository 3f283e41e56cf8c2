package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"call-scheduler/pkg/utils"
)

// PostgresStore keeps records in a single JSONB table. It exists so the
// registry can outlive a process restart without touching handler logic;
// the default deployment still runs on MemoryStore.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Init creates the backing table when missing.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS call_records (
			call_id    TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresStore) Put(ctx context.Context, rec CallRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("registry: encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_records (call_id, record)
		VALUES ($1, $2)
		ON CONFLICT (call_id) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		rec.CallID, data)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, callID string) (CallRecord, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM call_records WHERE call_id = $1`, callID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, false, nil
	}
	if err != nil {
		return CallRecord{}, false, err
	}
	var rec CallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return CallRecord{}, false, fmt.Errorf("registry: decode record: %w", err)
	}
	return rec, true, nil
}

// Update runs the read-modify-write under SELECT ... FOR UPDATE so
// concurrent polls and webhooks for the same call serialize.
func (s *PostgresStore) Update(ctx context.Context, callID string, fn func(*CallRecord) error) (CallRecord, error) {
	var out CallRecord
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var data []byte
		err := tx.QueryRowContext(ctx,
			`SELECT record FROM call_records WHERE call_id = $1 FOR UPDATE`, callID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec CallRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("registry: decode record: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		updated, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("registry: encode record: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE call_records SET record = $2, updated_at = now() WHERE call_id = $1`,
			callID, updated)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context) (map[string]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM call_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]CallRecord)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec CallRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("registry: decode record: %w", err)
		}
		out[rec.CallID] = rec
	}
	return out, rows.Err()
}
