package ipfs

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local IPFS repo via the Kubo CLI (offline)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Keys: []casregistry.Key{
			{Name: "bin", Help: "ipfs binary (default: ipfs on PATH)"},
			{Name: "path", Help: "IPFS repo path (sets IPFS_PATH)"},
			{Name: "pin", Help: "pin stored blocks (true/false, default true)"},
		},
		Open: func(_ context.Context, cfg map[string]string) (storage.CAS, func() error, error) {
			opts, err := parseOptions(cfg)
			if err != nil {
				return nil, nil, err
			}
			if _, err := exec.LookPath(opts.Bin); err != nil {
				return nil, nil, fmt.Errorf("ipfs: %s not found (install the Kubo ipfs CLI)", opts.Bin)
			}
			return New(opts), nil, nil
		},
	})
}

func parseOptions(cfg map[string]string) (Options, error) {
	opts := Options{Bin: cfg["bin"], Repo: cfg["path"], Pin: true}
	if opts.Bin == "" {
		opts.Bin = "ipfs"
	}
	if v := cfg["pin"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("ipfs: invalid pin %q", v)
		}
		opts.Pin = b
	}
	return opts, nil
}
