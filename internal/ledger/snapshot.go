// Package ledger records calculation snapshots in an append-only,
// hash-chained log. Every snapshot carries the hash of its predecessor and
// an HMAC-SHA256 signature, so tampering with any stored record breaks the
// chain for everything after it. Appends for a tenant are serialized;
// reads and verification run concurrently.
package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrChainIntegrity reports a broken hash chain or signature during
	// verification.
	ErrChainIntegrity = eris.New("ledger: chain integrity violation")

	// ErrTenantBusy reports that a tenant's append lock could not be
	// acquired before the context expired.
	ErrTenantBusy = eris.New("ledger: tenant append in progress")

	// ErrSnapshotNotFound reports a lookup miss.
	ErrSnapshotNotFound = eris.New("ledger: snapshot not found")
)

// genesisHash anchors the first snapshot of every tenant chain.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Snapshot is one immutable entry in a tenant's chain. Inputs and Outputs
// hold canonical JSON; the hash covers the whole record and the signature
// covers the hash.
type Snapshot struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Sequence   int64     `json:"sequence"`
	InputHash  string    `json:"input_hash"`
	Inputs     []byte    `json:"inputs"`
	Outputs    []byte    `json:"outputs"`
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
	Signature  string    `json:"signature"`
	RecordedAt time.Time `json:"recorded_at"`
}

// canonicalJSON marshals v into the byte form used for hashing. Struct
// fields marshal in declaration order and map keys sort, so equal values
// always produce equal bytes.
func canonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: canonical encode")
	}
	return b, nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// recordDigest is the hash material of a snapshot. The timestamp enters as
// RFC3339Nano so the stored text form round-trips exactly.
func recordDigest(s *Snapshot) string {
	material := fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		s.Sequence,
		s.TenantID,
		s.InputHash,
		hashBytes(s.Outputs),
		s.PrevHash,
		s.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return hashBytes([]byte(material))
}

func sign(key []byte, hash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil))
}

// seal computes and sets the snapshot's hash and signature.
func seal(key []byte, s *Snapshot) {
	s.Hash = recordDigest(s)
	s.Signature = sign(key, s.Hash)
}
