package grpccas

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "gRPC mirror client (talks to metatool-casd)",
		Usage:       casregistry.UsageCLI,
		Keys: []casregistry.Key{
			{Name: "target", Help: "gRPC target host:port"},
			{Name: "timeout", Help: "per-RPC timeout, e.g. 10s"},
			{Name: "max-msg-bytes", Help: "max gRPC message size in bytes (send+recv)"},
		},
		Open: func(_ context.Context, cfg map[string]string) (storage.CAS, func() error, error) {
			opts, err := parseOptions(cfg)
			if err != nil {
				return nil, nil, err
			}
			client, err := Dial(opts.target, opts.DialOptions)
			if err != nil {
				return nil, nil, err
			}
			return client, client.Close, nil
		},
	})
}

type backendOptions struct {
	DialOptions
	target string
}

func parseOptions(cfg map[string]string) (backendOptions, error) {
	opts := backendOptions{target: strings.TrimSpace(cfg["target"])}
	if opts.target == "" {
		return opts, errors.New("grpccas: missing target")
	}
	if v := cfg["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return opts, fmt.Errorf("grpccas: timeout: %w", err)
		}
		opts.Timeout = d
	}
	if v := cfg["max-msg-bytes"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("grpccas: invalid max-msg-bytes %q", v)
		}
		opts.MaxMsgBytes = n
	}
	return opts, nil
}
