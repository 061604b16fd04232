package grpccas

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/storage"
	"metadisk.org/metatool/storage/localfs"
	"metadisk.org/metatool/storage/testkit"
)

func startServer(t *testing.T) *Client {
	t.Helper()
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	return serve(t, cas)
}

func serve(t *testing.T, cas storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterMirrorServer(srv, &Server{CAS: cas})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{
		Timeout: 2 * time.Second,
		Extra:   []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return startServer(t)
	})
}

func TestGRPCCAS_LocalFS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := startServer(t)

	payload := []byte("hello grpccas")
	id, err := client.Put(ctx, payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want, _ := cidutil.CIDv1RawSHA256CID(payload)
	if id != want {
		t.Fatalf("Put CID: got %s want %s", id, want)
	}
	ok, err := client.Has(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Has: got %v, %v", ok, err)
	}
	got, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestParseOptions(t *testing.T) {
	if _, err := parseOptions(map[string]string{}); err == nil {
		t.Fatalf("missing target should fail")
	}
	if _, err := parseOptions(map[string]string{"target": "x:1", "timeout": "soon"}); err == nil {
		t.Fatalf("bad timeout should fail")
	}
	if _, err := parseOptions(map[string]string{"target": "x:1", "max-msg-bytes": "-1"}); err == nil {
		t.Fatalf("negative max-msg-bytes should fail")
	}
	opts, err := parseOptions(map[string]string{"target": " mirror:7070 ", "timeout": "3s", "max-msg-bytes": "1048576"})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.target != "mirror:7070" || opts.Timeout != 3*time.Second || opts.MaxMsgBytes != 1<<20 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

type countingCAS struct {
	storage.CAS
	puts atomic.Int32
}

func (c *countingCAS) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	c.puts.Add(1)
	return c.CAS.Put(ctx, b)
}

func TestGRPCCAS_PutSkipsKnownObjects(t *testing.T) {
	ctx := context.Background()
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	counting := &countingCAS{CAS: backend}
	client := serve(t, counting)

	payload := []byte("large download, mirrored twice")
	first, err := client.Put(ctx, payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := client.Put(ctx, payload)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if first != second {
		t.Fatalf("CIDs differ: %s vs %s", first, second)
	}
	if n := counting.puts.Load(); n != 1 {
		t.Fatalf("daemon received %d puts, want 1", n)
	}
}
