package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// PostgresStore keeps slots as JSONB rows of the app_slots table, keyed by
// namespace and slot name.
type PostgresStore struct {
	db        *sql.DB
	namespace string
	log       *slog.Logger
}

func NewPostgresStore(db *sql.DB, namespace string, log *slog.Logger) *PostgresStore {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresStore{
		db:        db,
		namespace: namespace,
		log:       log,
	}
}

func (s *PostgresStore) Load(ctx context.Context) (*Snapshot, error) {
	return loadSnapshot(ctx, s)
}

func (s *PostgresStore) Save(ctx context.Context, slot Slot, value any) error {
	return saveSlot(ctx, s, slot, value)
}

func (s *PostgresStore) Delete(ctx context.Context, slot Slot) error {
	return deleteSlot(ctx, s, slot)
}

func (s *PostgresStore) read(ctx context.Context, slot Slot) ([]byte, error) {
	const query = `
		SELECT value
		FROM app_slots
		WHERE namespace = $1 AND slot = $2
	`

	var data []byte
	if err := s.db.QueryRowContext(ctx, query, s.namespace, string(slot)).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		s.log.Error("failed to read slot", slog.String("slot", string(slot)), slog.Any("error", err))
		return nil, fmt.Errorf("select slot: %w", err)
	}

	return data, nil
}

func (s *PostgresStore) write(ctx context.Context, slot Slot, data []byte) error {
	const query = `
		INSERT INTO app_slots (namespace, slot, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, slot)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, s.namespace, string(slot), string(data)); err != nil {
		s.log.Error("failed to write slot", slog.String("slot", string(slot)), slog.Any("error", err))
		return fmt.Errorf("upsert slot: %w", err)
	}

	return nil
}

func (s *PostgresStore) remove(ctx context.Context, slot Slot) error {
	const query = `DELETE FROM app_slots WHERE namespace = $1 AND slot = $2`

	if _, err := s.db.ExecContext(ctx, query, s.namespace, string(slot)); err != nil {
		s.log.Error("failed to delete slot", slog.String("slot", string(slot)), slog.Any("error", err))
		return fmt.Errorf("delete slot: %w", err)
	}

	return nil
}
