package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"metadisk.org/metatool/metacore"
)

// countingOp wraps an operation and records the nodes it ran against.
type countingOp struct {
	metacore.Operation
	nodes []string
}

func (o *countingOp) Execute(ctx context.Context, c *metacore.Client) (metacore.Result, error) {
	o.nodes = append(o.nodes, c.BaseURL())
	return o.Operation.Execute(ctx, c)
}

type failingOp struct{ err error }

func (failingOp) Name() string { return "failing" }

func (o failingOp) Execute(context.Context, *metacore.Client) (metacore.Result, error) {
	return metacore.Result{}, o.err
}

func statusNode(t *testing.T, status int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(strconv.Itoa(status)))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

func deadNode(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL + "/"
}

func TestRedirectable(t *testing.T) {
	for _, code := range []int{400, 404, 500, 503} {
		require.True(t, Redirectable(code), "%d", code)
	}
	for _, code := range []int{200, 201, 301, 401, 403, 409, 502} {
		require.False(t, Redirectable(code), "%d", code)
	}
}

func TestDispatchTriesUntilAccepted(t *testing.T) {
	nodes := []string{
		statusNode(t, 400),
		statusNode(t, 404),
		statusNode(t, 500),
		statusNode(t, 503),
		statusNode(t, 200),
	}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	op := &countingOp{Operation: metacore.ListFiles{}}
	res, err := d.Dispatch(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, nodes, op.nodes)
	require.Equal(t, 200, res.StatusCode())
	require.Equal(t, "200", string(res.Response.Body))
}

func TestDispatchStopsOnOtherStatus(t *testing.T) {
	nodes := []string{statusNode(t, 404), statusNode(t, 401), statusNode(t, 200)}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	op := &countingOp{Operation: metacore.NodeInfo{}}
	res, err := d.Dispatch(context.Background(), op)
	require.NoError(t, err)
	require.Len(t, op.nodes, 2)
	require.Equal(t, 401, res.StatusCode())
}

func TestDispatchReturnsLastWhenAllRedirect(t *testing.T) {
	nodes := []string{statusNode(t, 500), statusNode(t, 404)}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	op := &countingOp{Operation: metacore.ListFiles{}}
	res, err := d.Dispatch(context.Background(), op)
	require.NoError(t, err)
	require.Len(t, op.nodes, 2)
	require.Equal(t, 404, res.StatusCode())
}

func TestDispatchTextResultStopsAtFirst(t *testing.T) {
	nodes := []string{statusNode(t, 200), statusNode(t, 200)}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	op := &countingOp{Operation: &metacore.Download{FileHash: "abc", Link: true}}
	res, err := d.Dispatch(context.Background(), op)
	require.NoError(t, err)
	require.True(t, res.IsText())
	require.Equal(t, nodes[:1], op.nodes)
	require.Equal(t, nodes[0]+"api/files/abc", res.Text)
}

func TestDispatchSkipsUnreachableNode(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	nodes := []string{deadNode(t), statusNode(t, 200)}
	d, err := New(nodes, metacore.ClientOptions{}, logger)
	require.NoError(t, err)

	op := &countingOp{Operation: metacore.ListFiles{}}
	res, err := d.Dispatch(context.Background(), op)
	require.NoError(t, err)
	require.Len(t, op.nodes, 2)
	require.Equal(t, 200, res.StatusCode())
	require.Contains(t, logs.String(), "node unreachable")
	require.Contains(t, logs.String(), "dispatch_id=")
}

func TestDispatchUnreachableLastKeepsPreviousResult(t *testing.T) {
	nodes := []string{statusNode(t, 503), deadNode(t)}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), metacore.ListFiles{})
	require.NoError(t, err)
	require.Equal(t, 503, res.StatusCode())
}

func TestDispatchAllUnreachable(t *testing.T) {
	d, err := New([]string{deadNode(t), deadNode(t)}, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), metacore.ListFiles{})
	require.Error(t, err)
	require.True(t, metacore.IsTransport(err))
}

func TestDispatchLocalErrorStops(t *testing.T) {
	nodes := []string{statusNode(t, 200), statusNode(t, 200)}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	op := &countingOp{Operation: failingOp{err: boom}}
	_, err = d.Dispatch(context.Background(), op)
	require.ErrorIs(t, err, boom)
	require.Len(t, op.nodes, 1)

	op = &countingOp{Operation: &metacore.Upload{Path: "whatever"}}
	_, err = d.Dispatch(context.Background(), op)
	require.ErrorIs(t, err, metacore.ErrMissingCredential)
	require.Len(t, op.nodes, 1)
}

func TestDispatchCanceledContext(t *testing.T) {
	nodes := []string{statusNode(t, 200), statusNode(t, 200)}
	d, err := New(nodes, metacore.ClientOptions{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op := &countingOp{Operation: metacore.ListFiles{}}
	_, err = d.Dispatch(ctx, op)
	require.Error(t, err)
	require.Len(t, op.nodes, 1)
}

func TestNewRequiresCandidates(t *testing.T) {
	_, err := New(nil, metacore.ClientOptions{}, nil)
	require.ErrorIs(t, err, ErrNoCandidates)

	_, err = (&Dispatcher{}).Dispatch(context.Background(), metacore.ListFiles{})
	require.ErrorIs(t, err, ErrNoCandidates)
}
