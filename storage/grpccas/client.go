package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"metadisk.org/metatool/cidutil"
	"metadisk.org/metatool/storage"
)

// Client mirrors downloads into a shared metatool-casd. Downloads can be
// large, so Put asks the daemon first and only ships bytes it lacks.
// Everything read back is checked against its CID.
type Client struct {
	cc     *grpc.ClientConn
	mirror MirrorClient

	// Timeout bounds each RPC; zero leaves it to ctx.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	Timeout time.Duration
	// MaxMsgBytes caps a single mirrored file in both directions; zero keeps
	// the grpc default (4 MiB received).
	MaxMsgBytes int
	// Extra dial options, e.g. a bufconn dialer.
	Extra []grpc.DialOption
}

// Dial returns a client for the daemon at target. No connection is made
// until the first call.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if n := opts.MaxMsgBytes; n > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(n),
			grpc.MaxCallSendMsgSize(n),
		))
	}
	cc, err := grpc.NewClient(target, append(dialOpts, opts.Extra...)...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, mirror: NewMirrorClient(cc), Timeout: opts.Timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	if ok, err := c.Has(ctx, want); err == nil && ok {
		return want, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	reply, err := c.mirror.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	got, err := cid.Decode(reply.GetValue())
	if err != nil || !got.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	if got != want {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	reply, err := c.mirror.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	if err := verify(id, reply.GetValue()); err != nil {
		return nil, err
	}
	return reply.GetValue(), nil
}

func (c *Client) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	reply, err := c.mirror.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// verify guards against a daemon handing back the wrong file.
func verify(id cid.Cid, b []byte) error {
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return err
	}
	if got != id {
		return storage.ErrCIDMismatch
	}
	return nil
}
