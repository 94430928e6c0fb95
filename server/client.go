package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a CompileServer.
type Client struct {
	compile *connect.Client[CompileRequest, CompileResponse]
	fetch   *connect.Client[FetchRequest, FetchResponse]
	list    *connect.Client[ListRequest, ListResponse]
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:7411".
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opt := connect.WithCodec(cborCodec{})
	return &Client{
		compile: connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, opt),
		fetch:   connect.NewClient[FetchRequest, FetchResponse](httpClient, baseURL+FetchProcedure, opt),
		list:    connect.NewClient[ListRequest, ListResponse](httpClient, baseURL+ListProcedure, opt),
	}
}

// Compile compiles a document remotely.
func (c *Client) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	res, err := c.compile.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// Fetch returns a stored artifact by hex hash.
func (c *Client) Fetch(ctx context.Context, hash string) (*FetchResponse, error) {
	res, err := c.fetch.CallUnary(ctx, connect.NewRequest(&FetchRequest{Hash: hash}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// List returns the stored hashes.
func (c *Client) List(ctx context.Context) ([]string, error) {
	res, err := c.list.CallUnary(ctx, connect.NewRequest(&ListRequest{}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Hashes, nil
}
