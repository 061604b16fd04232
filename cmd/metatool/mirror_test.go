package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"metadisk.org/metatool/cidutil"
)

func TestMirrorPutGetHas(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	payload := []byte("mirrored payload")
	src := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(src, payload, 0o600))

	code, out, errOut := runCLI(t, "mirror", "put", src, "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 0, code, errOut)
	cidStr := cidutil.CIDv1RawSHA256(payload)
	dataHash := cidutil.DataHash(payload)
	require.Contains(t, out, "cid: "+cidStr)
	require.Contains(t, out, "data_hash: "+dataHash)

	code, out, errOut = runCLI(t, "mirror", "get", cidStr, "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 0, code, errOut)
	require.Equal(t, string(payload), out)

	dst := filepath.Join(t.TempDir(), "out.bin")
	code, _, errOut = runCLI(t, "mirror", "get", dataHash, "--out", dst, "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 0, code, errOut)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	code, out, _ = runCLI(t, "mirror", "has", dataHash, "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 0, code)
	require.Equal(t, "true\n", out)

	code, out, _ = runCLI(t, "mirror", "has", cidutil.CIDv1RawSHA256([]byte("other")), "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 1, code)
	require.Equal(t, "false\n", out)
}

func TestMirrorExportImport(t *testing.T) {
	isolate(t)
	src := t.TempDir()
	a := filepath.Join(t.TempDir(), "a")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o600))
	code, _, errOut := runCLI(t, "mirror", "put", a, "--backend", "localfs", "--localfs-dir", src)
	require.Equal(t, 0, code, errOut)

	bundlePath := filepath.Join(t.TempDir(), "mirror.tar")
	code, _, errOut = runCLI(t, "mirror", "export", "--out", bundlePath, cidutil.DataHash([]byte("alpha")),
		"--backend", "localfs", "--localfs-dir", src)
	require.Equal(t, 0, code, errOut)
	require.Contains(t, errOut, "exported 1 object(s)")

	// The destination comes from a casconfig file this time.
	dst := t.TempDir()
	mirrorCfg := filepath.Join(t.TempDir(), "mirror.json")
	require.NoError(t, os.WriteFile(mirrorCfg,
		[]byte(`{"backends":[{"name":"localfs","config":{"dir":"`+dst+`"}}]}`), 0o600))
	code, out, errOut := runCLI(t, "mirror", "import", bundlePath, "--mirror-config", mirrorCfg)
	require.Equal(t, 0, code, errOut)
	require.Equal(t, cidutil.CIDv1RawSHA256([]byte("alpha")), strings.TrimSpace(out))

	code, out, _ = runCLI(t, "mirror", "get", cidutil.CIDv1RawSHA256([]byte("alpha")), "--mirror-config", mirrorCfg)
	require.Equal(t, 0, code)
	require.Equal(t, "alpha", out)
}

func TestMirrorErrors(t *testing.T) {
	isolate(t)

	code, _, errOut := runCLI(t, "mirror")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "metatool mirror put")

	code, _, errOut = runCLI(t, "mirror", "frobnicate")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "unknown mirror subcommand")

	code, _, errOut = runCLI(t, "mirror", "has", "abc")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "no mirror configured")

	dir := t.TempDir()
	code, _, errOut = runCLI(t, "mirror", "has", "not-a-cid", "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "neither a CID nor a data hash")

	code, _, _ = runCLI(t, "mirror", "get", cidutil.CIDv1RawSHA256([]byte("missing")), "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 1, code)

	code, _, _ = runCLI(t, "mirror", "export", "--backend", "localfs", "--localfs-dir", dir)
	require.Equal(t, 2, code)

	code, _, errOut = runCLI(t, "mirror", "put", "x", "--backend", "localfs", "--localfs-dir", dir, "--mirror-config", "m.json")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "mutually exclusive")
}

func TestMirrorBackends(t *testing.T) {
	code, out, _ := runCLI(t, "mirror", "backends")
	require.Equal(t, 0, code)
	for _, name := range []string{"localfs", "grpc", "ipfs"} {
		require.Contains(t, out, name+"\t")
	}
}
