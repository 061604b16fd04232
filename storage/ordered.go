package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Ordered provides deterministic, ordered fallback across several backends.
//
// Reads try Backends in slice order; a backend reporting ErrNotFound is
// skipped, any other error stops the lookup. Put writes only to the first
// backend.
type Ordered struct {
	Backends []CAS
}

var _ CAS = Ordered{}

func (o Ordered) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	if len(o.Backends) == 0 {
		return cid.Undef, ErrNoBackends
	}
	return o.Backends[0].Put(ctx, b)
}

func (o Ordered) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return getInOrder(ctx, o.Backends, id)
}

func (o Ordered) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, o.Backends, id)
}

func getInOrder(ctx context.Context, backends []CAS, id cid.Cid) ([]byte, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	for _, cas := range backends {
		if cas == nil {
			continue
		}
		b, err := cas.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func hasAny(ctx context.Context, backends []CAS, id cid.Cid) (bool, error) {
	for _, cas := range backends {
		if cas == nil {
			continue
		}
		ok, err := cas.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
