package ledger

import "context"

// Store persists snapshot chains. Implementations are append-only: no
// operation updates or deletes a stored snapshot.
type Store interface {
	// Append writes a sealed snapshot. The (tenant, sequence) and
	// (tenant, input hash) pairs are unique.
	Append(ctx context.Context, s *Snapshot) error

	// Latest returns the highest-sequence snapshot for the tenant, or
	// ErrSnapshotNotFound when the chain is empty.
	Latest(ctx context.Context, tenantID string) (*Snapshot, error)

	// FindByInputHash returns the tenant's snapshot for the input hash, or
	// ErrSnapshotNotFound.
	FindByInputHash(ctx context.Context, tenantID, inputHash string) (*Snapshot, error)

	// List returns the tenant's snapshots in ascending sequence order.
	// A positive limit returns only the most recent entries, still
	// ascending.
	List(ctx context.Context, tenantID string, limit int) ([]Snapshot, error)

	// Tenants returns the distinct tenant IDs with at least one snapshot.
	Tenants(ctx context.Context) ([]string, error)

	// Import bulk-loads sealed snapshots exported from another store and
	// returns the number written. Chain integrity is the caller's concern;
	// verify after importing.
	Import(ctx context.Context, snaps []Snapshot) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
