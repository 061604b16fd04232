package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/c2h5oh/datasize"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/keys"
	"metadisk.org/metatool/metacore"
	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/casconfig"
	"metadisk.org/metatool/storage/casregistry"
)

func cmdFiles(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	return cmdListing(ctx, "files", metacore.ListFiles{}, args, out, errOut)
}

func cmdInfo(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	return cmdListing(ctx, "info", metacore.NodeInfo{}, args, out, errOut)
}

func cmdListing(ctx context.Context, name string, op metacore.Operation, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 0 {
		fmt.Fprintf(errOut, "usage: metatool %s [common flags]\n", name)
		return 2
	}
	s, code := c.open(errOut)
	if s == nil {
		return code
	}
	_, code = s.execute(ctx, op, out, errOut)
	return code
}

func cmdUpload(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)

	var role string
	var encrypt bool
	var secret string
	var keyDir string
	var maxSize datasize.ByteSize
	fs.StringVar(&role, "r", metacore.DefaultFileRole, "File role (three digits)")
	fs.StringVar(&role, "file_role", metacore.DefaultFileRole, "File role (three digits)")
	fs.BoolVar(&encrypt, "encrypt", false, "Upload a convergently encrypted copy")
	fs.StringVar(&secret, "secret", "", "Convergence secret (with --encrypt)")
	fs.StringVar(&keyDir, "key-dir", ".", "Directory for the <data_hash>.metakey sidecar (with --encrypt; empty skips it)")
	fs.TextVar(&maxSize, "max-size", datasize.ByteSize(0), "Reject files larger than this, e.g. 64MB (0 uses the config limit)")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 1 {
		fmt.Fprintln(errOut, "usage: metatool upload <file> [-r ROLE] [--encrypt] [common flags]")
		return 2
	}
	if err := metacore.ValidateFileRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --file_role: %v\n", err)
		return 2
	}
	if !encrypt && (secret != "" || isSet(fs, "key-dir")) {
		fmt.Fprintln(errOut, "--secret and --key-dir require --encrypt")
		return 2
	}

	s, code := c.open(errOut)
	if s == nil {
		return code
	}
	if maxSize == 0 {
		maxSize = s.cfg.MaxUploadSize
	}
	cred, err := s.credential()
	if err != nil {
		fmt.Fprintf(errOut, "invalid signing key: %v\n", err)
		return 2
	}
	op := &metacore.Upload{
		Path:       pos[0],
		Role:       role,
		Encrypt:    encrypt,
		KeyDir:     keyDir,
		MaxSize:    maxSize,
		Credential: cred,
	}
	if secret != "" {
		op.Secret = []byte(secret)
	}
	_, code = s.execute(ctx, op, out, errOut)
	return code
}

func cmdDownload(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)

	var decryptionKey string
	var renameFile string
	var link bool
	var noLocalDecrypt bool
	var mirrorConfig string
	fs.StringVar(&decryptionKey, "decryption_key", "", "Hex decryption key (32, 48 or 64 chars)")
	fs.StringVar(&renameFile, "rename_file", "", "Name the node should serve the file as")
	fs.BoolVar(&link, "link", false, "Print the download URL instead of downloading")
	fs.BoolVar(&noLocalDecrypt, "no-local-decrypt", false, "Keep the file as served even with --decryption_key")
	fs.StringVar(&mirrorConfig, "mirror-config", "", "casconfig JSON describing a mirror for downloaded files")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 1 {
		fmt.Fprintln(errOut, "usage: metatool download <hash> [--decryption_key KEY] [--rename_file NAME] [--link] [common flags]")
		return 2
	}
	if decryptionKey != "" {
		if _, err := metacore.ValidateDecryptionKey(decryptionKey); err != nil {
			fmt.Fprintf(errOut, "invalid --decryption_key: %v\n", err)
			return 2
		}
	}

	s, code := c.open(errOut)
	if s == nil {
		return code
	}
	op := &metacore.Download{
		FileHash:         pos[0],
		DecryptionKey:    decryptionKey,
		RenameFile:       renameFile,
		Link:             link,
		SkipLocalDecrypt: noLocalDecrypt,
	}
	if !link {
		cred, err := s.credential()
		if err != nil {
			fmt.Fprintf(errOut, "invalid signing key: %v\n", err)
			return 2
		}
		op.Credential = cred

		mirror, closeFn, code := openMirror(ctx, mirrorConfig, s.cfg.Mirror, errOut)
		if code != 0 {
			return code
		}
		if closeFn != nil {
			defer closeFn()
		}
		op.Mirror = mirror
	}
	_, code = s.execute(ctx, op, out, errOut)
	return code
}

// openMirror opens the mirror named by path, or the one in the config file.
// A nil CAS means no mirror is configured.
func openMirror(ctx context.Context, path string, fromConfig *casconfig.Config, errOut io.Writer) (storage.CAS, func() error, int) {
	var cfg casconfig.Config
	switch {
	case path != "":
		loaded, err := casconfig.LoadFile(path)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --mirror-config: %v\n", err)
			return nil, nil, 2
		}
		cfg = loaded
	case fromConfig != nil:
		cfg = *fromConfig
	default:
		return nil, nil, 0
	}
	cas, closeFn, err := cfg.Open(ctx, casregistry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "open mirror: %v\n", err)
		return nil, nil, 1
	}
	return cas, closeFn, 0
}

func cmdAudit(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var c common
	c.register(fs)

	var verify string
	fs.StringVar(&verify, "verify", "", "Local copy of the file to check the challenge response against")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 2 {
		fmt.Fprintln(errOut, "usage: metatool audit <hash> <seed> [--verify FILE] [common flags]")
		return 2
	}

	s, code := c.open(errOut)
	if s == nil {
		return code
	}
	cred, err := s.credential()
	if err != nil {
		fmt.Fprintf(errOut, "invalid signing key: %v\n", err)
		return 2
	}
	res, code := s.execute(ctx, &metacore.Audit{FileHash: pos[0], Seed: pos[1], Credential: cred}, out, errOut)
	if code != 0 || verify == "" {
		return code
	}

	reply, err := metacore.ParseAuditReply(res.Response)
	if err != nil {
		return reportError(errOut, err)
	}
	ok, err := metacore.VerifyAudit(reply, verify)
	if err != nil {
		return reportError(errOut, err)
	}
	if !ok {
		fmt.Fprintf(errOut, "challenge response does not match %s\n", verify)
		return 1
	}
	fmt.Fprintf(errOut, "challenge response matches %s\n", verify)
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "new":
		return cmdKeyNew(args[1:], out, errOut)
	case "address":
		return cmdKeyAddress(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "metatool key: signing keys (nothing is written to disk)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  metatool key new [--scheme ed25519|dilithium3]")
	fmt.Fprintln(w, "  metatool key address (--seed-hex <64hex> | --key-file <path>) [--scheme ed25519|dilithium3]")
}

func cmdKeyNew(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key new", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var scheme string
	fs.StringVar(&scheme, "scheme", "", "Signature scheme: ed25519 or dilithium3")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	provider, err := keys.ProviderFor(scheme)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --scheme: %v\n", err)
		return 2
	}
	cred, err := keys.NewCredential(provider, nil)
	if err != nil {
		fmt.Fprintf(errOut, "generate key: %v\n", err)
		return 1
	}
	addr, err := cred.Address()
	if err != nil {
		fmt.Fprintf(errOut, "derive address: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "seed-hex: %x\n", cred.Key)
	fmt.Fprintf(out, "address: %s\n", addr)
	return 0
}

func cmdKeyAddress(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key address", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var scheme, seedHex, keyFile string
	fs.StringVar(&scheme, "scheme", "", "Signature scheme: ed25519 or dilithium3")
	fs.StringVar(&seedHex, "seed-hex", "", "Signing key as 64 hex chars")
	fs.StringVar(&keyFile, "key-file", "", "File holding the signing key as hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	provider, err := keys.ProviderFor(scheme)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --scheme: %v\n", err)
		return 2
	}
	seed, err := keys.LoadSeed(seedHex, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signing key: %v\n", err)
		return 2
	}
	addr, err := provider.Address(seed)
	if err != nil {
		fmt.Fprintf(errOut, "derive address: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, addr)
	return 0
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: metatool hash <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", fs.Arg(0), err)
		return 1
	}
	fmt.Fprintf(out, "data_hash: %s\n", cidutil.DataHash(b))
	fmt.Fprintf(out, "cid: %s\n", cidutil.CIDv1RawSHA256(b))
	return 0
}
