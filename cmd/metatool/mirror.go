package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/config"
	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/bundle"
	"metadisk.org/metatool/storage/casregistry"
)

func cmdMirror(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printMirrorUsage(errOut)
		return 2
	}
	switch args[0] {
	case "put":
		return cmdMirrorPut(ctx, args[1:], out, errOut)
	case "get":
		return cmdMirrorGet(ctx, args[1:], out, errOut)
	case "has":
		return cmdMirrorHas(ctx, args[1:], out, errOut)
	case "export":
		return cmdMirrorExport(ctx, args[1:], out, errOut)
	case "import":
		return cmdMirrorImport(ctx, args[1:], out, errOut)
	case "backends":
		printBackends(out)
		return 0
	case "help", "-h", "--help":
		printMirrorUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown mirror subcommand: %s\n\n", args[0])
		printMirrorUsage(errOut)
		return 2
	}
}

func printMirrorUsage(w io.Writer) {
	fmt.Fprintln(w, "metatool mirror: local copies of downloaded files, addressed by CID")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  metatool mirror put <file> [mirror flags]")
	fmt.Fprintln(w, "  metatool mirror get <cid|data_hash> [--out FILE] [mirror flags]")
	fmt.Fprintln(w, "  metatool mirror has <cid|data_hash> [mirror flags]")
	fmt.Fprintln(w, "  metatool mirror export --out BUNDLE.tar <cid|data_hash>... [mirror flags]")
	fmt.Fprintln(w, "  metatool mirror import <BUNDLE.tar> [mirror flags]")
	fmt.Fprintln(w, "  metatool mirror backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Mirror flags:")
	fmt.Fprintln(w, "  --backend NAME         open a single backend from --<backend>-<key> flags")
	fmt.Fprintln(w, "  --mirror-config FILE   casconfig JSON (default: the \"mirror\" section of --config)")
	fmt.Fprintln(w, "  --config FILE          metatool config file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - a 64-char hex data hash names the same object as its CIDv1 raw sha2-256 form")
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

// mirrorFlags selects the store a mirror subcommand works on.
type mirrorFlags struct {
	backend      string
	mirrorConfig string
	configPath   string
	backendFlags casregistry.Flags
}

func (m *mirrorFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&m.backend, "backend", "", "Single backend to open from its --<backend>-<key> flags")
	fs.StringVar(&m.mirrorConfig, "mirror-config", "", "casconfig JSON describing the mirror")
	fs.StringVar(&m.configPath, "config", "", "JSON config file")
	m.backendFlags = casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (m *mirrorFlags) open(ctx context.Context, errOut io.Writer) (storage.CAS, func() error, int) {
	if m.backend != "" {
		if m.mirrorConfig != "" {
			fmt.Fprintln(errOut, "--backend and --mirror-config are mutually exclusive")
			return nil, nil, 2
		}
		cas, closeFn, err := casregistry.Open(ctx, m.backend, casregistry.UsageCLI, m.backendFlags.Config(m.backend))
		if err != nil {
			fmt.Fprintf(errOut, "open mirror: %v\n", err)
			return nil, nil, 1
		}
		return cas, closeFn, 0
	}

	cfg, err := config.Load(m.configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return nil, nil, 2
	}
	cas, closeFn, code := openMirror(ctx, m.mirrorConfig, cfg.Mirror, errOut)
	if code != 0 {
		return nil, nil, code
	}
	if cas == nil {
		fmt.Fprintln(errOut, "no mirror configured (use --backend, --mirror-config or a \"mirror\" config section)")
		return nil, nil, 2
	}
	return cas, closeFn, 0
}

// mirrorSession parses a mirror subcommand and opens its store. The returned
// close function is never nil.
func mirrorSession(ctx context.Context, fs *flag.FlagSet, args []string, errOut io.Writer) (storage.CAS, []string, func(), int) {
	var m mirrorFlags
	m.register(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return nil, nil, nil, 2
	}
	cas, closeFn, code := m.open(ctx, errOut)
	if cas == nil {
		return nil, nil, nil, code
	}
	done := func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}
	return cas, pos, done, 0
}

// parseObjectID accepts a CID or a hex data hash.
func parseObjectID(s string) (cid.Cid, error) {
	if len(s) == 64 {
		if id, err := cidutil.CIDFromDataHash(s); err == nil {
			return id, nil
		}
	}
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%q is neither a CID nor a data hash", s)
	}
	return id, nil
}

func cmdMirrorPut(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mirror put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cas, pos, done, code := mirrorSession(ctx, fs, args, errOut)
	if cas == nil {
		return code
	}
	defer done()
	if len(pos) != 1 {
		fmt.Fprintln(errOut, "usage: metatool mirror put <file> [mirror flags]")
		return 2
	}

	b, err := os.ReadFile(pos[0])
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(pos[0]), err)
		return 1
	}
	id, err := cas.Put(ctx, b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "cid: %s\n", id)
	fmt.Fprintf(out, "data_hash: %s\n", cidutil.DataHash(b))
	return 0
}

func cmdMirrorGet(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mirror get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var outPath string
	fs.StringVar(&outPath, "out", "", "Output file (default stdout)")
	cas, pos, done, code := mirrorSession(ctx, fs, args, errOut)
	if cas == nil {
		return code
	}
	defer done()
	if len(pos) != 1 {
		fmt.Fprintln(errOut, "usage: metatool mirror get <cid|data_hash> [--out FILE] [mirror flags]")
		return 2
	}
	id, err := parseObjectID(pos[0])
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	b, err := cas.Get(ctx, id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if outPath == "" {
		_, err = out.Write(b)
	} else {
		err = os.WriteFile(outPath, b, 0o644)
	}
	if err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

// cmdMirrorHas exits 0 when the object is present and 1 when it is not.
func cmdMirrorHas(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mirror has", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cas, pos, done, code := mirrorSession(ctx, fs, args, errOut)
	if cas == nil {
		return code
	}
	defer done()
	if len(pos) != 1 {
		fmt.Fprintln(errOut, "usage: metatool mirror has <cid|data_hash> [mirror flags]")
		return 2
	}
	id, err := parseObjectID(pos[0])
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ok, err := cas.Has(ctx, id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, ok)
	if !ok {
		return 1
	}
	return 0
}

func cmdMirrorExport(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mirror export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var outPath string
	fs.StringVar(&outPath, "out", "", "Bundle file to write (- for stdout)")
	cas, pos, done, code := mirrorSession(ctx, fs, args, errOut)
	if cas == nil {
		return code
	}
	defer done()
	if outPath == "" || len(pos) == 0 {
		fmt.Fprintln(errOut, "usage: metatool mirror export --out BUNDLE.tar <cid|data_hash>... [mirror flags]")
		return 2
	}
	ids := make([]cid.Cid, 0, len(pos))
	for _, s := range pos {
		id, err := parseObjectID(s)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		ids = append(ids, id)
	}

	if outPath == "-" {
		if err := bundle.Export(ctx, out, cas, ids, bundle.ExportOptions{}); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	}
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
		return 1
	}
	if err := bundle.Export(ctx, f, cas, ids, bundle.ExportOptions{}); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "close %s: %v\n", outPath, err)
		return 1
	}
	fmt.Fprintf(errOut, "exported %d object(s) to %s\n", len(ids), outPath)
	return 0
}

func cmdMirrorImport(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mirror import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cas, pos, done, code := mirrorSession(ctx, fs, args, errOut)
	if cas == nil {
		return code
	}
	defer done()
	if len(pos) != 1 {
		fmt.Fprintln(errOut, "usage: metatool mirror import <BUNDLE.tar> [mirror flags]")
		return 2
	}

	f, err := os.Open(pos[0])
	if err != nil {
		fmt.Fprintf(errOut, "open %s: %v\n", pos[0], err)
		return 1
	}
	defer f.Close()
	ids, err := bundle.Import(ctx, f, cas, bundle.ImportOptions{})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return 0
}
