package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/api"
	"go.klb.dev/clipbridge/internal/clip"
	"go.klb.dev/clipbridge/internal/control"
	"go.klb.dev/clipbridge/internal/discovery"
	"go.klb.dev/clipbridge/internal/history"
	"go.klb.dev/clipbridge/internal/hub"
	"go.klb.dev/clipbridge/internal/ipc"
	"go.klb.dev/clipbridge/internal/lifecycle"
	"go.klb.dev/clipbridge/internal/netwatch"
	"go.klb.dev/clipbridge/internal/tracker"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard daemon",
		Long: `Starts the HTTP clipboard endpoint, advertises it over mDNS on the
machine's routable address and restarts when that address changes.

Config file search order:
  /etc/clipbridge/clipbridge.toml
  $HOME/.config/clipbridge/clipbridge.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPBRIDGE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	addServeFlags(cmd.Flags())
	return cmd
}

func addServeFlags(f *pflag.FlagSet) {
	f.String("addr", "0.0.0.0", "address to bind the HTTP endpoint to")
	f.Int("port", 8000, "HTTP port")
	f.String("token", "", "shared secret required in X-Auth-Token (default \""+defaultToken+"\")")
	f.String("history-file", defaultHistoryPath(), "where the clipboard history is kept")
	f.String("clipboard", string(clip.KindSystem), "clipboard device: system|memory")
	f.Bool("track-local", false, "also record copies made on this machine in the history")
	f.String("probe-target", netwatch.DefaultTarget, "address used to discover the routable interface (no traffic is sent)")
	f.String("name", defaultName(), "advertised instance suffix (ClipboardSyncServer-<name>)")
	addSocketFlag(f)
	addLoggingFlags(f)
	addConfigFlag(f)
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	token := v.GetString("token")
	if token == "" {
		token = defaultToken
		slog.Warn("no token configured, using the built-in default; anyone on the network can use this clipboard",
			"hint", "set --token or CLIPBRIDGE_TOKEN")
	}
	historyPath := v.GetString("history-file")
	markerPath := filepath.Join(filepath.Dir(historyPath), "restart.cbor")
	socketPath := v.GetString("socket")
	if socketPath == "" {
		socketPath = ipc.SocketPath()
	}

	if m, found, err := lifecycle.CheckMarker(markerPath, lifecycle.MarkerMaxAge); err != nil {
		slog.Warn("restart marker unreadable", "path", markerPath, "err", err)
	} else if found {
		slog.Info("restarted by previous process",
			"reason", m.Reason, "from", m.From, "to", m.To, "previous_pid", m.PID,
			"downtime", time.Since(m.Time).Round(time.Millisecond))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := hub.New()
	store := history.Open(historyPath)
	store.OnChange(func(entries []string) {
		events.Publish(hub.Event{Kind: hub.KindHistory, Entries: entries})
	})
	events.Publish(hub.Event{Kind: hub.KindHistory, Entries: store.Entries()})

	dev := clip.New(clip.Kind(v.GetString("clipboard")))
	defer dev.Close()

	ln, err := net.Listen("tcp", net.JoinHostPort(v.GetString("addr"), strconv.Itoa(v.GetInt("port"))))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	slog.Info("clipbridge starting",
		"version", Version,
		"addr", ln.Addr(),
		"clipboard", dev.Name(),
		"history", historyPath,
		"entries", store.Len(),
		"track_local", v.GetBool("track-local"),
	)

	state := &lifecycle.State{}
	disc := discovery.NewLifecycle(discovery.ZeroconfRegistrar{
		Name:        v.GetString("name"),
		Description: "clipbridge " + Version,
	})
	ctl := lifecycle.NewController(lifecycle.Config{
		State:      state,
		Discovery:  disc,
		Events:     events,
		MarkerPath: markerPath,
	})

	monitor := netwatch.New(netwatch.Config{
		Prober:    netwatch.UDPProber{Target: v.GetString("probe-target")},
		Restarter: ctl,
		Stopping:  state.Stopping,
		OnInitialized: func(addr netip.Addr) {
			state.SetAddress(addr)
			events.Publish(hub.Event{Kind: hub.KindAddress, Address: addr.String()})
			if err := disc.Register(addr, port); err != nil {
				slog.Warn("mDNS advertisement failed, the phone will need the address typed in", "err", err)
			}
		},
	})
	// Initial sample: advertise straight away when the network is up.
	monitor.Step(ctx)

	d := &daemon{
		ctx:     ctx,
		started: time.Now(),
		port:    port,
		state:   state,
		events:  events,
		disc:    disc,
		store:   store,
		dev:     dev,
		ctl:     ctl,
	}

	ctlCtx, cancelCtl := context.WithCancel(ctx)
	defer cancelCtl()
	if sock, err := ipc.Listen(socketPath); err != nil {
		slog.Warn("control socket unavailable", "path", socketPath, "err", err)
	} else {
		go control.NewServer(d, events).Serve(ctlCtx, sock)
	}
	ctl.OnStop(cancelCtl)
	ctl.OnStop(events.Close)

	if v.GetBool("track-local") {
		trackCtx, cancelTrack := context.WithCancel(ctx)
		defer cancelTrack()
		ctl.OnStop(cancelTrack)
		go tracker.New(dev, store, state.Stopping).Run(trackCtx)
	}

	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("address monitor stopped", "err", err)
		}
	}()

	srv := api.NewServer(ln.Addr().String(), api.NewHandler(api.Config{
		Token:      token,
		Clipboard:  dev,
		History:    store,
		Restarting: state.Restarting,
	}))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			ctl.Quit(ctx)
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		ctl.Quit(context.Background())
	case <-ctl.Done():
		slog.Info("stopped on request")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
