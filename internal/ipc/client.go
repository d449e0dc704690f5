package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// StartRun asks the daemon to begin a batch.
func (c *Client) StartRun(mode string, count int) (*StartRunResponse, error) {
	var resp StartRunResponse
	if err := c.client.Call("Imagine.StartRun", StartRunRequest{Mode: mode, Count: count}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopRun cancels the active batch.
func (c *Client) StopRun() (*StopRunResponse, error) {
	var resp StopRunResponse
	if err := c.client.Call("Imagine.StopRun", StopRunRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmLogin clears one worker's manual login gate.
func (c *Client) ConfirmLogin(worker int) (*ConfirmLoginResponse, error) {
	var resp ConfirmLoginResponse
	if err := c.client.Call("Imagine.ConfirmLogin", ConfirmLoginRequest{Worker: worker}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves daemon diagnostics.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Imagine.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log events from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Imagine.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
