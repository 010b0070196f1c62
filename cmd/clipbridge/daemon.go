package main

import (
	"context"
	"os"
	"time"

	"go.klb.dev/clipbridge/internal/clip"
	"go.klb.dev/clipbridge/internal/discovery"
	"go.klb.dev/clipbridge/internal/history"
	"go.klb.dev/clipbridge/internal/hub"
	"go.klb.dev/clipbridge/internal/lifecycle"
	"go.klb.dev/clipbridge/internal/message"
)

// daemon is the serve command's answer to control requests.
type daemon struct {
	ctx     context.Context
	started time.Time
	port    int
	state   *lifecycle.State
	events  *hub.Hub
	disc    *discovery.Lifecycle
	store   *history.Store
	dev     clip.Device
	ctl     *lifecycle.Controller
}

func (d *daemon) Status() message.Status {
	st := message.Status{
		Version:    Version,
		PID:        os.Getpid(),
		Started:    d.started,
		Port:       d.port,
		Restarting: d.state.Restarting(),
		Clipboard:  d.dev.Name(),
		Entries:    d.store.Len(),
		Viewers:    d.events.Len(),
	}
	if a := d.state.Address(); a.IsValid() {
		st.Address = a.String()
	}
	_, st.Advertised = d.disc.Registered()
	return st
}

func (d *daemon) Entries() []string { return d.store.Entries() }

func (d *daemon) Clear() { d.store.Clear() }

func (d *daemon) Delete(text string) bool { return d.store.Delete(text) }

func (d *daemon) Select(text string) error {
	if err := d.dev.WriteText(text); err != nil {
		return err
	}
	d.store.Add(text)
	return nil
}

// Restart and Quit claim the flag before answering so the reply is
// accurate, then finish in the background: the stop hooks shut down the
// control server that is handling this request.
func (d *daemon) Restart() bool {
	return d.ctl.StartRestart(d.ctx, lifecycle.Cause{Reason: "restart requested"})
}

func (d *daemon) Quit() bool { return d.ctl.StartQuit(d.ctx) }
