// Package control serves and consumes the daemon's local control socket.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.klb.dev/clipbridge/internal/hub"
	"go.klb.dev/clipbridge/internal/message"
	"go.klb.dev/clipbridge/internal/wire"
)

const readTimeout = 30 * time.Second

// Daemon is what the control socket exposes.
type Daemon interface {
	Status() message.Status
	Entries() []string
	Clear()
	Delete(text string) bool
	// Select puts text back on the host clipboard and at the front of
	// the history.
	Select(text string) error
	// Restart and Quit start the sequence and return at once. They
	// report false when one is already under way.
	Restart() bool
	Quit() bool
}

// Server answers control requests. Each connection carries one request.
type Server struct {
	daemon Daemon
	events *hub.Hub

	wg     sync.WaitGroup
	nextID int
	idMu   sync.Mutex
}

// NewServer returns a Server. events may be nil, which disables watch.
func NewServer(d Daemon, events *hub.Hub) *Server {
	return &Server{daemon: d, events: events}
}

// Serve accepts connections until ctx is done, then closes ln and waits
// for in-flight requests. Watch streams end when ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("control socket listening", "path", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("control accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	wc := wire.New(conn)
	defer wc.Close()

	wc.SetReadDeadline(readTimeout)
	var req message.Request
	if err := wc.ReadMsg(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			_ = wc.WriteMsg(message.Fail(fmt.Errorf("invalid request: %w", err)))
		}
		return
	}
	wc.SetReadDeadline(0)

	if req.Action == message.ActionWatch {
		s.watch(ctx, wc)
		return
	}

	resp := s.dispatch(req)
	slog.Debug("control request", "action", req.Action, "ok", resp.OK)
	if err := wc.WriteMsg(resp); err != nil {
		slog.Debug("control response not delivered", "action", req.Action, "err", err)
	}
}

func (s *Server) dispatch(req message.Request) message.Response {
	d := s.daemon
	switch req.Action {
	case message.ActionStatus:
		st := d.Status()
		return message.Response{OK: true, Status: &st}
	case message.ActionHistory:
		return message.Response{OK: true, Entries: d.Entries()}
	case message.ActionClear:
		d.Clear()
		return message.Response{OK: true, Accepted: true}
	case message.ActionDelete:
		return message.Response{OK: true, Accepted: d.Delete(req.Text)}
	case message.ActionSelect:
		if err := d.Select(req.Text); err != nil {
			return message.Fail(err)
		}
		return message.Response{OK: true, Accepted: true}
	case message.ActionRestart:
		return message.Response{OK: true, Accepted: d.Restart()}
	case message.ActionQuit:
		return message.Response{OK: true, Accepted: d.Quit()}
	case "":
		return message.Fail(errors.New("missing required field: action"))
	}
	return message.Fail(fmt.Errorf("unknown action %q", req.Action))
}

// watch streams hub events until the client hangs up, the hub closes or
// ctx is done.
func (s *Server) watch(ctx context.Context, wc *wire.Conn) {
	if s.events == nil {
		_ = wc.WriteMsg(message.Fail(errors.New("watch not available")))
		return
	}

	s.idMu.Lock()
	s.nextID++
	sub := hub.NewChan(fmt.Sprintf("watch-%d", s.nextID), 32)
	s.idMu.Unlock()

	s.events.Register(sub)
	defer s.events.Unregister(sub)

	// A watcher never sends after its request; any read result means it
	// went away.
	gone := make(chan struct{})
	go func() {
		var discard message.Request
		_ = wc.ReadMsg(&discard)
		close(gone)
	}()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := wc.WriteMsg(message.Response{OK: true, Event: &ev}); err != nil {
				return
			}
		case <-gone:
			return
		case <-ctx.Done():
			return
		}
	}
}
