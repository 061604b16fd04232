// Command metatool is a client for MetaCore storage nodes: it uploads,
// downloads and audits files and queries node state, trying each candidate
// node in turn.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"metadisk.org/metatool/config"
	"metadisk.org/metatool/dispatch"
	"metadisk.org/metatool/keys"
	"metadisk.org/metatool/metacore"

	_ "metadisk.org/metatool/storage/grpccas"
	_ "metadisk.org/metatool/storage/ipfs"
	_ "metadisk.org/metatool/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(out)
		return 0
	}
	action, globals, rest, err := liftGlobals(args)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n\n", err)
		printUsage(errOut)
		return 2
	}
	if action == "" {
		printUsage(out)
		return 0
	}
	args = append([]string{action}, withGlobals(rest, globals)...)

	switch args[0] {
	case "files":
		return cmdFiles(ctx, args[1:], out, errOut)
	case "info":
		return cmdInfo(ctx, args[1:], out, errOut)
	case "upload":
		return cmdUpload(ctx, args[1:], out, errOut)
	case "download":
		return cmdDownload(ctx, args[1:], out, errOut)
	case "audit":
		return cmdAudit(ctx, args[1:], out, errOut)
	case "mirror":
		return cmdMirror(ctx, args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "metatool: MetaCore storage client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  metatool [common flags] <action> ...")
	fmt.Fprintln(w, "  metatool files [common flags]")
	fmt.Fprintln(w, "  metatool info [common flags]")
	fmt.Fprintln(w, "  metatool upload <file> [-r ROLE] [--encrypt [--secret S] [--key-dir DIR]] [--max-size SIZE] [common flags]")
	fmt.Fprintln(w, "  metatool download <hash> [--decryption_key KEY] [--rename_file NAME] [--link] [--no-local-decrypt] [--mirror-config FILE] [common flags]")
	fmt.Fprintln(w, "  metatool audit <hash> <seed> [--verify FILE] [common flags]")
	fmt.Fprintln(w, "  metatool mirror put|get|has|export|import|backends ... (see metatool mirror help)")
	fmt.Fprintln(w, "  metatool key new [--scheme ed25519|dilithium3]")
	fmt.Fprintln(w, "  metatool key address (--seed-hex <64hex> | --key-file <path>) [--scheme ed25519|dilithium3]")
	fmt.Fprintln(w, "  metatool hash <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --url URL          use only this node")
	fmt.Fprintln(w, "  --config FILE      JSON config file (default: <user config dir>/metatool/config.json if present)")
	fmt.Fprintln(w, "  --seed-hex HEX     signing key as 64 hex chars")
	fmt.Fprintln(w, "  --key-file PATH    file holding the signing key as hex")
	fmt.Fprintln(w, "  --scheme NAME      signature scheme: ed25519 (default) or dilithium3")
	fmt.Fprintln(w, "  --timeout D        per-request timeout, 0 disables (default 60s)")
	fmt.Fprintln(w, "  -v                 debug logging on stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintf(w, "  - without --url, nodes come from $%s, then the config file, then the built-in list\n", config.EnvServer)
	fmt.Fprintln(w, "  - without --seed-hex/--key-file a fresh signing key is generated for each run")
	fmt.Fprintln(w, "  - flags may appear before or after the positional arguments")
}

// common holds the flags every node command accepts.
type common struct {
	url        string
	configPath string
	seedHex    string
	keyFile    string
	scheme     string
	timeout    time.Duration
	verbose    bool

	fs *flag.FlagSet
}

func (c *common) register(fs *flag.FlagSet) {
	c.fs = fs
	fs.StringVar(&c.url, "url", "", "Node base URL (overrides $"+config.EnvServer+" and the config file)")
	fs.StringVar(&c.configPath, "config", "", "JSON config file")
	fs.StringVar(&c.seedHex, "seed-hex", "", "Signing key as 64 hex chars")
	fs.StringVar(&c.keyFile, "key-file", "", "File holding the signing key as hex")
	fs.StringVar(&c.scheme, "scheme", "", "Signature scheme: ed25519 or dilithium3 (default from config)")
	fs.DurationVar(&c.timeout, "timeout", 0, "Per-request timeout; 0 disables (default from config, 60s)")
	fs.BoolVar(&c.verbose, "v", false, "Debug logging")
}

// session is what a node command needs once its flags are parsed.
type session struct {
	cfg        config.Config
	log        *slog.Logger
	dispatcher *dispatch.Dispatcher
	provider   keys.Provider
	c          *common
}

func (c *common) open(errOut io.Writer) (*session, int) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return nil, 2
	}
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	scheme := cfg.Scheme
	if c.scheme != "" {
		scheme = c.scheme
	}
	provider, err := keys.ProviderFor(scheme)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --scheme: %v\n", err)
		return nil, 2
	}

	timeout := time.Duration(cfg.Timeout)
	if c.fs != nil && isSet(c.fs, "timeout") {
		timeout = c.timeout
	}
	if timeout == 0 {
		// Zero means no limit here; ClientOptions reads zero as its default.
		timeout = -1
	}
	nodes := config.ResolveNodes(c.url, os.Getenv, cfg)
	d, err := dispatch.New(nodes, metacore.ClientOptions{Timeout: timeout}, logger)
	if err != nil {
		fmt.Fprintf(errOut, "dispatch: %v\n", err)
		return nil, 2
	}
	logger.Debug("candidates", "nodes", nodes, "timeout", timeout)
	return &session{cfg: cfg, log: logger, dispatcher: d, provider: provider, c: c}, 0
}

// credential returns the configured signing key, or a fresh one when none
// was given.
func (s *session) credential() (keys.Credential, error) {
	if s.c.seedHex == "" && s.c.keyFile == "" {
		cred, err := keys.NewCredential(s.provider, nil)
		if err != nil {
			return keys.Credential{}, err
		}
		if addr, err := cred.Address(); err == nil {
			s.log.Debug("generated signing key", "sender_address", addr)
		}
		return cred, nil
	}
	seed, err := keys.LoadSeed(s.c.seedHex, s.c.keyFile)
	if err != nil {
		return keys.Credential{}, err
	}
	return keys.Credential{Key: seed, Provider: s.provider}, nil
}

// execute dispatches op, prints the accepted result and maps it to an exit
// code.
func (s *session) execute(ctx context.Context, op metacore.Operation, out, errOut io.Writer) (metacore.Result, int) {
	res, err := s.dispatcher.Dispatch(ctx, op)
	if err != nil {
		return res, reportError(errOut, err)
	}
	if err := metacore.Show(out, res); err != nil {
		fmt.Fprintf(errOut, "write output: %v\n", err)
		return res, 1
	}
	if !res.IsText() && res.StatusCode() >= 400 {
		return res, 1
	}
	return res, 0
}

func reportError(errOut io.Writer, err error) int {
	fmt.Fprintln(errOut, err)
	if metacore.KindOf(err) == metacore.KindUsage || errors.Is(err, keys.ErrNoSeed) {
		return 2
	}
	return 1
}
