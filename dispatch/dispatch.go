// Package dispatch runs an operation against an ordered list of candidate
// nodes and decides which node's answer to keep.
//
// Candidates are tried strictly in order, one at a time. A textual result
// (a download link, a saved path) ends the search at once. An HTTP response
// ends it unless its status is one of the redirectable codes, in which case
// the next candidate is tried. When every candidate has been tried the last
// response seen is returned, even if it carries a redirectable status.
package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"metadisk.org/metatool/metacore"
)

// ErrNoCandidates is returned when the candidate list is empty.
var ErrNoCandidates = errors.New("dispatch: no candidate nodes")

// Redirectable reports whether a node's status means "try the next node".
func Redirectable(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// Dispatcher executes operations against Candidates.
type Dispatcher struct {
	Candidates []string
	// Client is applied to every per-node client. Its Logger is replaced by
	// the dispatch-scoped logger.
	Client metacore.ClientOptions
	Logger *slog.Logger
}

// New returns a dispatcher for candidates, which must not be empty.
func New(candidates []string, opts metacore.ClientOptions, logger *slog.Logger) (*Dispatcher, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	return &Dispatcher{Candidates: append([]string(nil), candidates...), Client: opts, Logger: logger}, nil
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

// Dispatch runs op against the candidates and returns the accepted result.
//
// A candidate that cannot be reached is logged and skipped. If no candidate
// produced a result, the last transport error is returned. Local failures
// (bad arguments, unreadable files, signing errors) are returned at once since
// another node would fail the same way.
func (d *Dispatcher) Dispatch(ctx context.Context, op metacore.Operation) (metacore.Result, error) {
	if len(d.Candidates) == 0 {
		return metacore.Result{}, ErrNoCandidates
	}
	log := d.logger().With("dispatch_id", uuid.NewString(), "op", op.Name())

	var (
		last    *metacore.Result
		lastErr error
	)
	for i, node := range d.Candidates {
		opts := d.Client
		opts.Logger = log
		c, err := metacore.NewClient(node, opts)
		if err != nil {
			return metacore.Result{}, err
		}

		res, err := op.Execute(ctx, c)
		if err != nil {
			if !metacore.IsTransport(err) || ctx.Err() != nil {
				return metacore.Result{}, err
			}
			log.Warn("node unreachable", "node", node, "attempt", i+1, "err", err)
			lastErr = err
			continue
		}
		if res.IsText() {
			log.Debug("textual result", "node", node, "attempt", i+1)
			return res, nil
		}

		status := res.StatusCode()
		if !Redirectable(status) {
			log.Debug("accepted", "node", node, "attempt", i+1, "status", status)
			return res, nil
		}
		log.Info("trying next node", "node", node, "attempt", i+1, "status", status)
		last = &res
	}
	if last != nil {
		return *last, nil
	}
	return metacore.Result{}, lastErr
}
