package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"metadisk.org/metatool/cidutil"
)

// Named associates a CAS with a stable backend name for reporting.
type Named struct {
	Name string
	CAS  CAS
}

// Replicated writes to every backend and reads in order.
//
// Every backend must return the CID computed locally from the bytes,
// otherwise Put fails with ErrCIDMismatch. Use PutAll when the per-backend
// CIDs are needed.
type Replicated struct {
	Backends []Named
}

var _ CAS = Replicated{}

// PutAll writes b to all backends and returns the canonical CID together
// with the CID each backend reported.
func (r Replicated) PutAll(ctx context.Context, b []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	if !want.Defined() {
		return cid.Undef, nil, ErrInvalidCID
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, nb := range r.Backends {
		if nb.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", nb.Name)
		}
		got, err := nb.CAS.Put(ctx, b)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", nb.Name, err)
		}
		out[nb.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r Replicated) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, b)
	return id, err
}

func (r Replicated) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return getInOrder(ctx, r.list(), id)
}

func (r Replicated) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, r.list(), id)
}

func (r Replicated) list() []CAS {
	out := make([]CAS, 0, len(r.Backends))
	for _, nb := range r.Backends {
		out = append(out, nb.CAS)
	}
	return out
}
