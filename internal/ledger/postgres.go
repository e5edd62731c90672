package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tax-engine/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot append and lookup paths.
var preparedStatements = map[string]string{
	"append_snapshot": `INSERT INTO snapshots (id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at)
	                    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"latest_snapshot": `SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
	                    FROM snapshots WHERE tenant_id = $1 ORDER BY sequence DESC LIMIT 1`,
	"find_by_input_hash": `SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
	                       FROM snapshots WHERE tenant_id = $1 AND input_hash = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// inputs and outputs are BYTEA, not JSONB: the chain hashes cover the
// exact canonical bytes, and JSONB reserializes on read (whitespace after
// separators), which would fail verification on an untampered chain.
// recorded_at is TEXT for the same reason, so the RFC3339Nano form used in
// the record hash round-trips without precision loss.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	sequence    BIGINT NOT NULL,
	input_hash  TEXT NOT NULL,
	inputs      BYTEA NOT NULL,
	outputs     BYTEA NOT NULL,
	prev_hash   TEXT NOT NULL,
	hash        TEXT NOT NULL,
	signature   TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	UNIQUE (tenant_id, sequence),
	UNIQUE (tenant_id, input_hash)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tenant ON snapshots(tenant_id, sequence);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, snap *Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		snap.ID, snap.TenantID, snap.Sequence, snap.InputHash,
		snap.Inputs, snap.Outputs,
		snap.PrevHash, snap.Hash, snap.Signature,
		snap.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrapf(err, "postgres: append snapshot for tenant %s", snap.TenantID)
}

func (s *PostgresStore) Latest(ctx context.Context, tenantID string) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
		 FROM snapshots WHERE tenant_id = $1 ORDER BY sequence DESC LIMIT 1`,
		tenantID,
	)
	return scanPgSnapshot(row)
}

func (s *PostgresStore) FindByInputHash(ctx context.Context, tenantID, inputHash string) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
		 FROM snapshots WHERE tenant_id = $1 AND input_hash = $2`,
		tenantID, inputHash,
	)
	return scanPgSnapshot(row)
}

func (s *PostgresStore) List(ctx context.Context, tenantID string, limit int) ([]Snapshot, error) {
	query := `SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
	          FROM snapshots WHERE tenant_id = $1 ORDER BY sequence ASC`
	args := []any{tenantID}

	if limit > 0 {
		query = `SELECT * FROM (
		           SELECT id, tenant_id, sequence, input_hash, inputs, outputs, prev_hash, hash, signature, recorded_at
		           FROM snapshots WHERE tenant_id = $1 ORDER BY sequence DESC LIMIT $2
		         ) recent ORDER BY sequence ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT tenant_id FROM snapshots ORDER BY tenant_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tenants")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tenant")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list tenants iterate")
}

// Import bulk-loads via COPY.
func (s *PostgresStore) Import(ctx context.Context, snaps []Snapshot) (int64, error) {
	rows := make([][]any, 0, len(snaps))
	for i := range snaps {
		snap := &snaps[i]
		rows = append(rows, []any{
			snap.ID, snap.TenantID, snap.Sequence, snap.InputHash,
			snap.Inputs, snap.Outputs,
			snap.PrevHash, snap.Hash, snap.Signature,
			snap.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return db.CopyFrom(ctx, s.pool, "snapshots",
		[]string{"id", "tenant_id", "sequence", "input_hash", "inputs", "outputs", "prev_hash", "hash", "signature", "recorded_at"},
		rows,
	)
}

func scanPgSnapshot(row pgx.Row) (*Snapshot, error) {
	var snap Snapshot
	var recordedAt string

	err := row.Scan(&snap.ID, &snap.TenantID, &snap.Sequence, &snap.InputHash,
		&snap.Inputs, &snap.Outputs, &snap.PrevHash, &snap.Hash, &snap.Signature, &recordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}

	snap.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse recorded_at")
	}
	return &snap, nil
}
