// Package bundle moves mirror contents between stores as a deterministic
// TAR archive: one blocks/<cid> entry per object plus an index.json that
// lists each object's CID, size and MetaDisk data hash.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/storage"
)

// FormatVersion is the current index schema version.
const FormatVersion = 1

const (
	indexName   = "index.json"
	blockPrefix = "blocks/"
)

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels optionally names objects, e.g. by the file they were saved as.
	Labels map[string]cid.Cid
	// OmitIndex leaves index.json out of the archive.
	OmitIndex bool
}

// Export writes the objects ids to w. Entry order is lexicographic and TAR
// headers are normalized, so equal inputs give equal bytes. Every object is
// checked against its CID before it is written.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) (err error) {
	if cas == nil {
		return errors.New("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	idx := Index{Version: FormatVersion, CIDCodec: "raw", Multihash: "sha2-256"}
	for _, s := range names {
		id := uniq[s]
		b, err := cas.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("bundle: get %s: %w", s, err)
		}
		got, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			return err
		}
		if got != id {
			return storage.ErrCIDMismatch
		}
		if err := writeEntry(tw, blockPrefix+s, b); err != nil {
			return err
		}
		idx.Blocks = append(idx.Blocks, IndexBlock{CID: s, Size: len(b), DataHash: cidutil.DataHash(b)})
	}

	if opts.OmitIndex {
		return nil
	}
	labels, err := sortedLabels(opts.Labels)
	if err != nil {
		return err
	}
	idx.Labels = labels
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeEntry(tw, indexName, append(b, '\n'))
}

func sortedLabels(m map[string]cid.Cid) ([]IndexLabel, error) {
	if len(m) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]IndexLabel, 0, len(names))
	for _, k := range names {
		if k == "" {
			return nil, errors.New("bundle: empty label name")
		}
		v := m[k]
		if !v.Defined() {
			return nil, storage.ErrInvalidCID
		}
		out = append(out, IndexLabel{Name: k, CID: v.String()})
	}
	return out, nil
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips entries that are neither blocks nor the index.
	// By default such entries fail the import.
	IgnoreUnknown bool
}

// Import reads a bundle from r into cas and returns the imported CIDs in
// archive order. Each block must match the CID in its entry name.
func Import(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) ([]cid.Cid, error) {
	if cas == nil {
		return nil, errors.New("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[cid.Cid]struct{}{}
	var imported []cid.Cid
	for {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		h, err := tr.Next()
		if err == io.EOF {
			return imported, nil
		}
		if err != nil {
			return imported, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return imported, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return imported, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}
		if name == indexName {
			continue
		}
		if !strings.HasPrefix(name, blockPrefix) {
			if opts.IgnoreUnknown {
				continue
			}
			return imported, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, err := cid.Decode(strings.TrimPrefix(name, blockPrefix))
		if err != nil || !id.Defined() {
			return imported, storage.ErrInvalidCID
		}
		if _, ok := seen[id]; ok {
			return imported, fmt.Errorf("bundle: duplicate block entry: %s", id)
		}
		seen[id] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return imported, err
		}
		got, err := cidutil.CIDv1RawSHA256CID(payload)
		if err != nil {
			return imported, err
		}
		if got != id {
			return imported, storage.ErrCIDMismatch
		}
		putID, err := cas.Put(ctx, payload)
		if err != nil {
			return imported, err
		}
		if putID != id {
			return imported, storage.ErrCIDMismatch
		}
		imported = append(imported, id)
	}
}

// ReadIndex returns the index of a bundle without importing it.
func ReadIndex(r io.Reader) (Index, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return Index{}, errors.New("bundle: no index.json")
		}
		if err != nil {
			return Index{}, err
		}
		if cleanTarPath(h.Name) != indexName {
			continue
		}
		var idx Index
		if err := json.NewDecoder(tr).Decode(&idx); err != nil {
			return Index{}, fmt.Errorf("bundle: index.json: %w", err)
		}
		return idx, nil
	}
}

// Index is the index.json schema.
type Index struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []IndexBlock `json:"blocks"`
	Labels    []IndexLabel `json:"labels,omitempty"`
}

type IndexBlock struct {
	CID      string `json:"cid"`
	Size     int    `json:"size"`
	DataHash string `json:"dataHash"`
}

type IndexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanTarPath normalizes an entry name, returning "" for names that are
// empty or climb out of the archive root.
func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
