// Package localfs keeps a download mirror in a plain directory.
//
// Each object is stored under its MetaDisk data hash, sharded by the first
// two hex characters (<root>/3f/3fa9...), so the mirror can be browsed with
// the same hashes "metatool files" prints.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/storage"
)

// CAS is a directory-backed mirror. Objects are read-only once written and
// checked against their CID when read back.
type CAS struct {
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New opens the mirror at root, creating the directory if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

// Root returns the mirror directory.
func (c *CAS) Root() string { return c.root }

// Put stores b. Storing the same bytes again is a no-op; a different file
// already sitting at that path is reported as storage.ErrImmutable.
func (c *CAS) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	path, err := c.pathFor(id)
	if err != nil {
		return cid.Undef, err
	}

	if _, err := os.Stat(path); err == nil {
		existing, rerr := os.ReadFile(path)
		if rerr != nil || !bytes.Equal(existing, b) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	if err := writeAtomic(path, b); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// writeAtomic writes b next to path and renames it into place, so readers
// never see a partly written download.
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o444); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFor(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := c.pathFor(id)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// pathFor maps a sha2-256 CID to <root>/<hash[:2]>/<hash>. Other CIDs can
// never name a mirrored download.
func (c *CAS) pathFor(id cid.Cid) (string, error) {
	if !id.Defined() {
		return "", storage.ErrInvalidCID
	}
	hash, err := cidutil.DataHashFromCID(id)
	if err != nil {
		return "", storage.ErrInvalidCID
	}
	return filepath.Join(c.root, hash[:2], hash), nil
}
