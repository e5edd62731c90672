package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Ledger appends and verifies snapshot chains on top of a Store. Appends
// for the same tenant are serialized through a per-tenant lock; different
// tenants append concurrently.
type Ledger struct {
	store Store
	key   []byte
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger signing with the given key.
func New(store Store, signingKey []byte, opts ...Option) (*Ledger, error) {
	if len(signingKey) == 0 {
		return nil, eris.New("ledger: signing key is empty")
	}
	l := &Ledger{
		store: store,
		key:   signingKey,
		now:   time.Now,
		locks: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends a snapshot of one calculation. The input hash is the
// SHA-256 of the canonical JSON of inputs; recording the same inputs for
// the same tenant twice returns the existing snapshot unchanged.
func (l *Ledger) Record(ctx context.Context, tenantID string, inputs, outputs any) (*Snapshot, error) {
	if tenantID == "" {
		return nil, eris.New("ledger: tenant id is empty")
	}

	inputJSON, err := canonicalJSON(inputs)
	if err != nil {
		return nil, err
	}
	outputJSON, err := canonicalJSON(outputs)
	if err != nil {
		return nil, err
	}
	inputHash := hashBytes(inputJSON)

	release, err := l.acquire(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := l.store.FindByInputHash(ctx, tenantID, inputHash)
	if err == nil {
		return existing, nil
	}
	if !eris.Is(err, ErrSnapshotNotFound) {
		return nil, err
	}

	prevHash := genesisHash
	var sequence int64 = 1
	prev, err := l.store.Latest(ctx, tenantID)
	switch {
	case err == nil:
		prevHash = prev.Hash
		sequence = prev.Sequence + 1
	case eris.Is(err, ErrSnapshotNotFound):
	default:
		return nil, err
	}

	s := &Snapshot{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Sequence:   sequence,
		InputHash:  inputHash,
		Inputs:     inputJSON,
		Outputs:    outputJSON,
		PrevHash:   prevHash,
		RecordedAt: l.now().UTC(),
	}
	seal(l.key, s)

	if err := l.store.Append(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// VerifyChain walks the tenant's chain from genesis, recomputing every
// input hash, record hash, link, and signature. The first broken link is
// reported through ErrChainIntegrity with its sequence number. An empty
// chain verifies trivially.
func (l *Ledger) VerifyChain(ctx context.Context, tenantID string) (int, error) {
	chain, err := l.store.List(ctx, tenantID, 0)
	if err != nil {
		return 0, err
	}

	prevHash := genesisHash
	for i := range chain {
		s := &chain[i]
		if s.Sequence != int64(i)+1 {
			return i, eris.Wrapf(ErrChainIntegrity, "sequence gap at %d: got %d", i+1, s.Sequence)
		}
		if s.PrevHash != prevHash {
			return i, eris.Wrapf(ErrChainIntegrity, "sequence %d: previous-hash link broken", s.Sequence)
		}
		if hashBytes(s.Inputs) != s.InputHash {
			return i, eris.Wrapf(ErrChainIntegrity, "sequence %d: inputs do not match input hash", s.Sequence)
		}
		if recordDigest(s) != s.Hash {
			return i, eris.Wrapf(ErrChainIntegrity, "sequence %d: record hash mismatch", s.Sequence)
		}
		if sign(l.key, s.Hash) != s.Signature {
			return i, eris.Wrapf(ErrChainIntegrity, "sequence %d: signature mismatch", s.Sequence)
		}
		prevHash = s.Hash
	}
	return len(chain), nil
}

// History returns the tenant's snapshots in chain order. A positive limit
// returns only the most recent entries.
func (l *Ledger) History(ctx context.Context, tenantID string, limit int) ([]Snapshot, error) {
	return l.store.List(ctx, tenantID, limit)
}

// Tenants lists every tenant with at least one snapshot.
func (l *Ledger) Tenants(ctx context.Context) ([]string, error) {
	return l.store.Tenants(ctx)
}

// Import bulk-loads sealed snapshots exported from another store, then
// verifies every affected tenant's chain. A chain that fails verification
// is reported through ErrChainIntegrity; the imported rows stay stored for
// inspection.
func (l *Ledger) Import(ctx context.Context, snaps []Snapshot) (int64, error) {
	n, err := l.store.Import(ctx, snaps)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(snaps))
	for i := range snaps {
		tenant := snaps[i].TenantID
		if seen[tenant] {
			continue
		}
		seen[tenant] = true
		if _, err := l.VerifyChain(ctx, tenant); err != nil {
			return n, eris.Wrapf(err, "ledger: imported chain for tenant %s", tenant)
		}
	}
	return n, nil
}

// acquire takes the tenant's append lock, waiting until the context
// expires.
func (l *Ledger) acquire(ctx context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.locks[tenantID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[tenantID] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, eris.Wrapf(ErrTenantBusy, "tenant %s: %v", tenantID, ctx.Err())
	}
}
