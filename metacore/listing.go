package metacore

import (
	"context"
	"net/http"

	"metadisk.org/metatool/internal/httpx"
)

// ListFiles fetches the hashes of the files stored on the node.
type ListFiles struct{}

func (ListFiles) Name() string { return "files" }

func (op ListFiles) Execute(ctx context.Context, c *Client) (Result, error) {
	resp, err := c.do(ctx, op.Name(), &httpx.Request{Method: http.MethodGet, Path: PathFiles})
	if err != nil {
		return Result{}, err
	}
	return Result{Response: resp}, nil
}

// NodeInfo fetches the node's storage and bandwidth usage.
type NodeInfo struct{}

func (NodeInfo) Name() string { return "info" }

func (op NodeInfo) Execute(ctx context.Context, c *Client) (Result, error) {
	resp, err := c.do(ctx, op.Name(), &httpx.Request{Method: http.MethodGet, Path: PathNodeMe})
	if err != nil {
		return Result{}, err
	}
	return Result{Response: resp}, nil
}
