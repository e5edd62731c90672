package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// recorded_at is TEXT so the RFC3339Nano form used in the record hash
// round-trips without precision loss.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	input_hash  TEXT NOT NULL,
	inputs      TEXT NOT NULL,
	outputs     TEXT NOT NULL,
	prev_hash   TEXT NOT NULL,
	hash        TEXT NOT NULL,
	signature   TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	UNIQUE (tenant_id, sequence),
	UNIQUE (tenant_id, input_hash)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tenant ON snapshots(tenant_id, sequence);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, snap *Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.TenantID, snap.Sequence, snap.InputHash,
		string(snap.Inputs), string(snap.Outputs),
		snap.PrevHash, snap.Hash, snap.Signature,
		snap.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrapf(err, "sqlite: append snapshot for tenant %s", snap.TenantID)
}

func (s *SQLiteStore) Latest(ctx context.Context, tenantID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
		 FROM snapshots WHERE tenant_id = ? ORDER BY sequence DESC LIMIT 1`,
		tenantID,
	)
	return scanSnapshot(row)
}

func (s *SQLiteStore) FindByInputHash(ctx context.Context, tenantID, inputHash string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
		 FROM snapshots WHERE tenant_id = ? AND input_hash = ?`,
		tenantID, inputHash,
	)
	return scanSnapshot(row)
}

func (s *SQLiteStore) List(ctx context.Context, tenantID string, limit int) ([]Snapshot, error) {
	query := `SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
	          FROM snapshots WHERE tenant_id = ? ORDER BY sequence ASC`
	args := []any{tenantID}

	if limit > 0 {
		// Most recent `limit` entries, still in ascending order.
		query = `SELECT * FROM (
		           SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
		           FROM snapshots WHERE tenant_id = ? ORDER BY sequence DESC LIMIT ?
		         ) ORDER BY sequence ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT tenant_id FROM snapshots ORDER BY tenant_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tenants")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tenant")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list tenants iterate")
}

// Import writes the batch inside one transaction so a failed load leaves
// no partial chain behind.
func (s *SQLiteStore) Import(ctx context.Context, snaps []Snapshot) (int64, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshots (id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close()

	var n int64
	for i := range snaps {
		snap := &snaps[i]
		if _, err := stmt.ExecContext(ctx,
			snap.ID, snap.TenantID, snap.Sequence, snap.InputHash,
			string(snap.Inputs), string(snap.Outputs),
			snap.PrevHash, snap.Hash, snap.Signature,
			snap.RecordedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import snapshot %d for tenant %s", snap.Sequence, snap.TenantID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*Snapshot, error) {
	var snap Snapshot
	var inputs, outputs, recordedAt string

	err := row.Scan(&snap.ID, &snap.TenantID, &snap.Sequence, &snap.InputHash,
		&inputs, &outputs, &snap.PrevHash, &snap.Hash, &snap.Signature, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}

	snap.Inputs = []byte(inputs)
	snap.Outputs = []byte(outputs)
	snap.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse recorded_at")
	}
	return &snap, nil
}
