package localfs

import (
	"context"
	"errors"

	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem mirror (directory)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Keys:        []casregistry.Key{{Name: "dir", Help: "mirror directory"}},
		Open: func(_ context.Context, cfg map[string]string) (storage.CAS, func() error, error) {
			dir := cfg["dir"]
			if dir == "" {
				return nil, nil, errors.New("localfs: missing dir")
			}
			cas, err := New(dir)
			return cas, nil, err
		},
	})
}
