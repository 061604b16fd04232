package casconfig_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/casconfig"
	"metadisk.org/metatool/storage/casregistry"
	_ "metadisk.org/metatool/storage/localfs"
)

func TestValidate(t *testing.T) {
	require.Error(t, casconfig.Config{}.Validate())
	require.Error(t, casconfig.Config{Backends: []casconfig.BackendConfig{{}}}.Validate())
	require.Error(t, casconfig.Config{Backends: []casconfig.BackendConfig{
		{Name: "localfs"}, {Name: "localfs"},
	}}.Validate())
	require.NoError(t, casconfig.Config{Backends: []casconfig.BackendConfig{
		{Name: "localfs"}, {Name: "localfs", ID: "second"},
	}}.Validate())
	require.Error(t, casconfig.Config{WritePolicy: "some", Backends: []casconfig.BackendConfig{{Name: "localfs"}}}.Validate())
}

func TestLoadFileAndOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.json")
	body := `{"write_policy":"all","backends":[
		{"name":"localfs","id":"a","config":{"dir":"` + filepath.Join(dir, "a") + `"}},
		{"name":"localfs","id":"b","config":{"dir":"` + filepath.Join(dir, "b") + `"}}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := casconfig.LoadFile(path)
	require.NoError(t, err)

	cas, closeFn, err := cfg.Open(context.Background(), casregistry.UsageCLI)
	require.NoError(t, err)
	defer closeFn()

	r, ok := cas.(storage.Replicated)
	require.True(t, ok, "write_policy all opens a Replicated store, got %T", cas)
	id, per, err := r.PutAll(context.Background(), []byte("mirrored"))
	require.NoError(t, err)
	require.Len(t, per, 2)
	require.Equal(t, id, per["a"])
}

func TestOpenSingleAndFailure(t *testing.T) {
	ctx := context.Background()
	cfg := casconfig.Config{Backends: []casconfig.BackendConfig{
		{Name: "localfs", Config: map[string]string{"dir": t.TempDir()}},
	}}
	cas, closeFn, err := cfg.Open(ctx, casregistry.UsageCLI)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	_, isOrdered := cas.(storage.Ordered)
	require.False(t, isOrdered, "a single backend is returned as is")

	cfg.Backends = append(cfg.Backends, casconfig.BackendConfig{Name: "nope"})
	_, _, err = cfg.Open(ctx, casregistry.UsageCLI)
	require.ErrorContains(t, err, `backend "nope"`)
}
