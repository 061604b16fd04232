package casregistry

import (
	"context"
	"flag"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"metadisk.org/metatool/storage"
)

type nopCAS struct{ cfg map[string]string }

func (nopCAS) Put(context.Context, []byte) (cid.Cid, error) { return cid.Undef, storage.ErrInvalidCID }
func (nopCAS) Get(context.Context, cid.Cid) ([]byte, error) { return nil, storage.ErrNotFound }
func (nopCAS) Has(context.Context, cid.Cid) (bool, error)   { return false, nil }

func registerTestBackend(t *testing.T, name string, usage Usage) {
	t.Helper()
	err := Register(Backend{
		Name:  name,
		Usage: usage,
		Keys:  []Key{{Name: "dir", Help: "directory"}},
		Open: func(_ context.Context, cfg map[string]string) (storage.CAS, func() error, error) {
			return nopCAS{cfg: cfg}, nil, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		mu.Lock()
		delete(backends, name)
		mu.Unlock()
	})
}

func TestRegisterValidates(t *testing.T) {
	require.Error(t, Register(Backend{}))
	require.Error(t, Register(Backend{Name: "x", Usage: UsageCLI}))

	registerTestBackend(t, "test-dup", UsageCLI)
	err := Register(Backend{Name: "test-dup", Usage: UsageCLI, Open: func(context.Context, map[string]string) (storage.CAS, func() error, error) {
		return nil, nil, nil
	}})
	require.Error(t, err)
}

func TestOpenRespectsUsage(t *testing.T) {
	registerTestBackend(t, "test-daemon-only", UsageDaemon)

	_, _, err := Open(context.Background(), "test-daemon-only", UsageCLI, nil)
	require.Error(t, err)

	cas, _, err := Open(context.Background(), "test-daemon-only", UsageDaemon, map[string]string{"dir": "/x"})
	require.NoError(t, err)
	require.Equal(t, "/x", cas.(nopCAS).cfg["dir"])

	_, _, err = Open(context.Background(), "test-missing", UsageDaemon, nil)
	require.Error(t, err)
}

func TestRegisterFlagsBuildsConfig(t *testing.T) {
	registerTestBackend(t, "test-flags", UsageDaemon)

	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	flags := RegisterFlags(fs, UsageDaemon)
	require.NoError(t, fs.Parse([]string{"--test-flags-dir", "/srv/mirror"}))

	require.Equal(t, map[string]string{"dir": "/srv/mirror"}, flags.Config("test-flags"))
	require.Empty(t, flags.Config("test-unknown"))
	require.Contains(t, Names(UsageDaemon), "test-flags")
}
