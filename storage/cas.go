// Package storage defines the content-addressed store downloaded files are
// mirrored into, and the ordered and replicated combinations of several stores.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is the content-addressed store used to mirror downloaded files.
//
// Contract:
// - Put MUST be idempotent and return the CIDv1 (raw, sha2-256) of the bytes.
// - Stored objects MUST be immutable.
// - Get MUST return ErrNotFound when the CID is absent.
// - Has reports presence; backends that cannot tell return false, nil.
type CAS interface {
	Put(ctx context.Context, b []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// Closer is implemented by backends holding connections or handles.
type Closer interface {
	Close() error
}
