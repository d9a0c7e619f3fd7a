// Package sqlite persists the mapping records linking internal events to
// their published public counterparts. Mapping rows are never deleted;
// lifecycle changes are status transitions so the audit history survives.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gracechapel/calsync/internal"
)

const DriverName = "sqlite3"

// mappingNamespace seeds deterministic mapping ids so concurrent Ensure
// calls for the same source key converge on one row instead of duplicating.
var mappingNamespace = uuid.MustParse("9f2c1f4e-6b2a-4c87-9a51-3a40f0a7d1c2")

func mappingID(sourceKey string) string {
	return uuid.NewSHA1(mappingNamespace, []byte(sourceKey)).String()
}

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sql.DB) *Storage {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	err := s.RunMigrations()
	if err != nil {
		panic(fmt.Sprintf("sqlite: running migrations: %v", err))
	}
	return s
}

// Ensure creates the mapping for a source key if it does not exist yet, then
// returns the stored row. The unique constraint on source_event_id makes the
// create atomic under concurrent callers.
func (s Storage) Ensure(ctx context.Context, sourceKey string) (*internal.Mapping, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mappings (id, source_event_id, status)
		VALUES (?, ?, ?)
		ON CONFLICT(source_event_id) DO NOTHING
	`, mappingID(sourceKey), sourceKey, internal.StatusDraft)
	if err != nil {
		return nil, err
	}

	m, err := s.Get(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("sqlite: mapping for %q missing after ensure", sourceKey)
	}
	return m, nil
}

func (s Storage) Get(ctx context.Context, sourceKey string) (*internal.Mapping, error) {
	var m internal.Mapping
	err := s.db.GetContext(ctx, &m, `
		SELECT id, source_event_id, public_event_id, last_public_event_id,
			payload_hash, last_synced_at, status
		FROM mappings
		WHERE source_event_id = ?
	`, sourceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s Storage) GetByPublicID(ctx context.Context, publicEventID string) (*internal.Mapping, error) {
	if publicEventID == "" {
		return nil, nil
	}
	var m internal.Mapping
	err := s.db.GetContext(ctx, &m, `
		SELECT id, source_event_id, public_event_id, last_public_event_id,
			payload_hash, last_synced_at, status
		FROM mappings
		WHERE public_event_id = ?
	`, publicEventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Update merge-patches a mapping: only defined patch fields are written and
// the source key is re-asserted in case the row was created under a stale
// key. It returns the row as committed so the caller sees authoritative
// state, not its own optimistic view.
func (s Storage) Update(ctx context.Context, sourceKey string, patch internal.MappingPatch) (*internal.Mapping, error) {
	sets := []string{"source_event_id = ?"}
	args := []interface{}{sourceKey}

	if patch.PublicEventID != nil {
		sets = append(sets, "public_event_id = ?")
		args = append(args, *patch.PublicEventID)
	}
	if patch.LastPublicEventID != nil {
		sets = append(sets, "last_public_event_id = ?")
		args = append(args, *patch.LastPublicEventID)
	}
	if patch.PayloadHash != nil {
		sets = append(sets, "payload_hash = ?")
		args = append(args, *patch.PayloadHash)
	}
	if patch.LastSyncedAt != nil {
		sets = append(sets, "last_synced_at = ?")
		args = append(args, *patch.LastSyncedAt)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	args = append(args, sourceKey)

	res, err := s.db.ExecContext(ctx, `
		UPDATE mappings SET `+strings.Join(sets, ", ")+`
		WHERE source_event_id = ?
	`, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, internal.ErrMappingNotFound
	}
	return s.Get(ctx, sourceKey)
}

func (s Storage) All(ctx context.Context) ([]*internal.Mapping, error) {
	var rows []internal.Mapping
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, source_event_id, public_event_id, last_public_event_id,
			payload_hash, last_synced_at, status
		FROM mappings
		ORDER BY source_event_id
	`)
	if err != nil {
		return nil, err
	}

	res := make([]*internal.Mapping, len(rows))
	for i := range rows {
		res[i] = &rows[i]
	}
	return res, nil
}
