// Package ipfs mirrors downloaded files into a local IPFS repository by
// shelling out to the Kubo "ipfs" CLI. No daemon is needed.
//
// Blocks are stored raw with sha2-256 and CIDv1, so their CIDs match the ones
// every other mirror backend computes.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/storage"
)

// CAS is a storage.CAS backed by the local ipfs binary.
type CAS struct {
	bin string
	env []string
	pin bool
}

var _ storage.CAS = (*CAS)(nil)

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// Repo sets IPFS_PATH for every command. Empty uses the process environment.
	Repo string
	// Pin keeps stored blocks from being garbage collected.
	Pin bool
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	c := &CAS{bin: bin, pin: opts.Pin}
	if opts.Repo != "" {
		c.env = append(os.Environ(), "IPFS_PATH="+opts.Repo)
	}
	return c
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}

	args := []string{
		"block", "put",
		"--quiet",
		"--cid-codec=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
	}
	if c.pin {
		args = append(args, "--pin=true")
	}
	out, err := c.run(ctx, data, append(args, "/dev/stdin")...)
	if err != nil {
		return cid.Undef, err
	}

	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if got != id {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(ctx, nil, "block", "get", id.String())
	if err != nil {
		if isLikelyNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	got, err := cidutil.CIDv1RawSHA256CID(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

// Has uses "block stat --offline"; any failure other than a missing block
// is reported.
func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	_, err := c.run(ctx, nil, "block", "stat", "--offline", id.String())
	switch {
	case err == nil:
		return true, nil
	case isLikelyNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (c *CAS) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if s := strings.TrimSpace(string(ee.Stderr)); s != "" {
			return nil, fmt.Errorf("ipfs: %s", s)
		}
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func isLikelyNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
