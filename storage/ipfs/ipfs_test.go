package ipfs

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/testkit"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions(map[string]string{})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.Bin != "ipfs" || !opts.Pin || opts.Repo != "" {
		t.Fatalf("unexpected defaults: %+v", opts)
	}

	opts, err = parseOptions(map[string]string{"bin": "/opt/kubo/ipfs", "path": "/srv/ipfs", "pin": "false"})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.Bin != "/opt/kubo/ipfs" || opts.Pin || opts.Repo != "/srv/ipfs" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	if _, err := parseOptions(map[string]string{"pin": "maybe"}); err == nil {
		t.Fatalf("invalid pin should fail")
	}
}

func TestNewSetsRepoEnv(t *testing.T) {
	c := New(Options{Repo: "/srv/ipfs"})
	if c.bin != "ipfs" {
		t.Fatalf("bin: got %q", c.bin)
	}
	found := false
	for _, kv := range c.env {
		if kv == "IPFS_PATH=/srv/ipfs" {
			found = true
		}
	}
	if !found {
		t.Fatalf("IPFS_PATH not set in %v", c.env)
	}
	if New(Options{}).env != nil {
		t.Fatalf("env should be inherited when no repo is given")
	}
}

// The conformance run needs a real Kubo binary and initializes a throwaway repo.
func TestIPFS_Conformance(t *testing.T) {
	if _, err := exec.LookPath("ipfs"); err != nil {
		t.Skip("ipfs not on PATH")
	}
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		repo := t.TempDir()
		cmd := exec.Command("ipfs", "init", "--profile=test")
		cmd.Env = append(os.Environ(), "IPFS_PATH="+repo)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("ipfs init: %v: %s", err, out)
		}
		return New(Options{Repo: repo, Pin: true})
	})
}

func TestMissingBinary(t *testing.T) {
	c := New(Options{Bin: "/nonexistent/ipfs"})
	if _, err := c.Put(context.Background(), []byte("x")); err == nil {
		t.Fatalf("expected error from missing binary")
	}
}
