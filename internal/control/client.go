package control

import (
	"context"
	"errors"
	"fmt"

	"go.klb.dev/clipbridge/internal/hub"
	"go.klb.dev/clipbridge/internal/ipc"
	"go.klb.dev/clipbridge/internal/message"
	"go.klb.dev/clipbridge/internal/wire"
)

// Client talks to a daemon's control socket.
type Client struct {
	Path string
}

// NewClient returns a Client for the socket at path, or the default
// socket when path is empty.
func NewClient(path string) *Client {
	if path == "" {
		path = ipc.SocketPath()
	}
	return &Client{Path: path}
}

func (c *Client) call(ctx context.Context, req message.Request) (message.Response, error) {
	conn, err := ipc.Dial(ctx, c.Path)
	if err != nil {
		return message.Response{}, err
	}
	wc := wire.New(conn)
	defer wc.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := wc.WriteMsg(req); err != nil {
		return message.Response{}, err
	}
	var resp message.Response
	if err := wc.ReadMsg(&resp); err != nil {
		return message.Response{}, fmt.Errorf("%s: reading response: %w", req.Action, err)
	}
	if !resp.OK {
		return resp, fmt.Errorf("%s: %s", req.Action, resp.Error)
	}
	return resp, nil
}

// Status returns the daemon's status.
func (c *Client) Status(ctx context.Context) (message.Status, error) {
	resp, err := c.call(ctx, message.Request{Action: message.ActionStatus})
	if err != nil {
		return message.Status{}, err
	}
	if resp.Status == nil {
		return message.Status{}, errors.New("status: empty response")
	}
	return *resp.Status, nil
}

// History returns the history, newest first.
func (c *Client) History(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, message.Request{Action: message.ActionHistory})
	return resp.Entries, err
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.call(ctx, message.Request{Action: message.ActionClear})
	return err
}

// Delete removes text from the history and reports whether it was there.
func (c *Client) Delete(ctx context.Context, text string) (bool, error) {
	resp, err := c.call(ctx, message.Request{Action: message.ActionDelete, Text: text})
	return resp.Accepted, err
}

// Select puts text back on the daemon host's clipboard.
func (c *Client) Select(ctx context.Context, text string) error {
	_, err := c.call(ctx, message.Request{Action: message.ActionSelect, Text: text})
	return err
}

// Restart asks the daemon to re-exec. false means a restart or quit was
// already in progress.
func (c *Client) Restart(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, message.Request{Action: message.ActionRestart})
	return resp.Accepted, err
}

// Quit asks the daemon to stop.
func (c *Client) Quit(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, message.Request{Action: message.ActionQuit})
	return resp.Accepted, err
}

// Watch streams daemon events until ctx is done or the daemon goes away,
// then closes the channel.
func (c *Client) Watch(ctx context.Context) (<-chan hub.Event, error) {
	conn, err := ipc.Dial(ctx, c.Path)
	if err != nil {
		return nil, err
	}
	wc := wire.New(conn)
	if err := wc.WriteMsg(message.Request{Action: message.ActionWatch}); err != nil {
		wc.Close()
		return nil, err
	}

	out := make(chan hub.Event, 16)
	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		wc.Close()
	}()
	go func() {
		defer close(out)
		defer close(stopped)
		for {
			var resp message.Response
			if err := wc.ReadMsg(&resp); err != nil {
				return
			}
			if !resp.OK || resp.Event == nil {
				continue
			}
			select {
			case out <- *resp.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
