package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/eleven-am/netform/internal/domain"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS resource_records (
	topology        TEXT        NOT NULL,
	logical_name    TEXT        NOT NULL,
	kind            TEXT        NOT NULL,
	provider_id     TEXT        NOT NULL DEFAULT '',
	attributes_hash TEXT        NOT NULL DEFAULT '',
	attributes      JSONB       NOT NULL DEFAULT '{}',
	last_status     TEXT        NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (topology, logical_name)
)`

const upsertSQL = `
INSERT INTO resource_records
	(topology, logical_name, kind, provider_id, attributes_hash, attributes, last_status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (topology, logical_name) DO UPDATE SET
	kind            = EXCLUDED.kind,
	provider_id     = EXCLUDED.provider_id,
	attributes_hash = EXCLUDED.attributes_hash,
	attributes      = EXCLUDED.attributes,
	last_status     = EXCLUDED.last_status,
	updated_at      = EXCLUDED.updated_at`

const selectColumns = `logical_name, kind, provider_id, attributes_hash, attributes, last_status, updated_at`

// PostgresStore keeps records in a resource_records table, one row per
// (topology, logical name). Row-level upserts serialize concurrent writers.
type PostgresStore struct {
	db       *sql.DB
	topology string
}

// OpenPostgres connects with lib/pq and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn, topology string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, domain.StoreError("open", "postgres", err)
	}
	store := NewPostgresStore(db, topology)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewPostgresStore(db *sql.DB, topology string) *PostgresStore {
	return &PostgresStore{db: db, topology: topology}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return domain.StoreError("migrate", "resource_records", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ResourceRecord, error) {
	var rec domain.ResourceRecord
	var kind, status string
	var attrs []byte
	if err := row.Scan(&rec.LogicalName, &kind, &rec.ProviderID, &rec.AttributesHash, &attrs, &status, &rec.UpdatedAt); err != nil {
		return domain.ResourceRecord{}, err
	}
	rec.Kind = domain.ResourceKind(kind)
	rec.LastStatus = domain.RecordStatus(status)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return domain.ResourceRecord{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, logicalName string) (domain.ResourceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM resource_records WHERE topology = $1 AND logical_name = $2`,
		s.topology, logicalName)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResourceRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ResourceRecord{}, domain.StoreError("get", logicalName, err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, record domain.ResourceRecord) error {
	attrs := record.Attributes
	if attrs == nil {
		attrs = domain.Attributes{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return domain.StoreError("put", record.LogicalName, err)
	}
	_, err = s.db.ExecContext(ctx, upsertSQL,
		s.topology, record.LogicalName, string(record.Kind), record.ProviderID,
		record.AttributesHash, data, string(record.LastStatus), record.UpdatedAt)
	if err != nil {
		return domain.StoreError("put", record.LogicalName, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, logicalName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM resource_records WHERE topology = $1 AND logical_name = $2`,
		s.topology, logicalName)
	if err != nil {
		return domain.StoreError("delete", logicalName, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.ResourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM resource_records WHERE topology = $1 ORDER BY logical_name`,
		s.topology)
	if err != nil {
		return nil, domain.StoreError("list", s.topology, err)
	}
	defer rows.Close()

	var out []domain.ResourceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, domain.StoreError("list", s.topology, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list", s.topology, err)
	}
	return out, nil
}
