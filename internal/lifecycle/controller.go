package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"slices"
	"sync"
	"time"

	"go.klb.dev/clipbridge/internal/clock"
	"go.klb.dev/clipbridge/internal/hub"
)

// Cooldown is the pause between tearing down and re-exec, giving the
// network stack time to settle on the new address.
const Cooldown = 5 * time.Second

// Cause says why a restart was requested.
type Cause struct {
	Reason string
	From   netip.Addr
	To     netip.Addr
}

func (c Cause) String() string {
	if c.From.IsValid() || c.To.IsValid() {
		return fmt.Sprintf("%s (%s -> %s)", c.Reason, c.From, c.To)
	}
	return c.Reason
}

// Unregisterer withdraws the network advertisement. Unregister must be
// idempotent and must not fail.
type Unregisterer interface {
	Unregister()
}

// Publisher receives state-change events.
type Publisher interface {
	Publish(hub.Event) hub.Event
}

// ExecFunc replaces the running process. It returns only on failure.
type ExecFunc func(argv0 string, argv, env []string) error

// Config wires a Controller. Zero fields take production defaults.
type Config struct {
	State      *State
	Clock      clock.Clock
	Cooldown   time.Duration
	Discovery  Unregisterer
	Events     Publisher
	MarkerPath string // empty disables the marker

	Exec       ExecFunc
	Exit       func(code int)
	Executable func() (string, error)
	Args       []string
	Environ    func() []string
}

// Controller runs the restart and quit sequences. Whichever of the two
// claims the State's flag first wins; the other becomes a no-op.
type Controller struct {
	cfg Config

	mu    sync.Mutex
	hooks []func()

	done     chan struct{}
	doneOnce sync.Once
}

// NewController fills in defaults and returns a Controller.
func NewController(cfg Config) *Controller {
	if cfg.State == nil {
		cfg.State = &State{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = Cooldown
	}
	if cfg.Exec == nil {
		cfg.Exec = replaceProcess
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	if cfg.Executable == nil {
		cfg.Executable = os.Executable
	}
	if cfg.Args == nil {
		cfg.Args = os.Args
	}
	if cfg.Environ == nil {
		cfg.Environ = os.Environ
	}
	return &Controller{cfg: cfg, done: make(chan struct{})}
}

// State returns the shared restart state.
func (c *Controller) State() *State { return c.cfg.State }

// OnStop registers fn to run during teardown, before the cooldown.
// Hooks run in registration order, once.
func (c *Controller) OnStop(fn func()) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Done is closed when Quit has finished tearing down.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Restart tears the daemon down and re-executes the binary with the same
// arguments and environment. It reports false without doing anything when
// a restart or quit is already under way.
//
// On success the process image is replaced and the call does not return;
// an injected ExecFunc that returns nil yields (true, nil). If exec fails
// the error is logged and the process exits with status 1.
func (c *Controller) Restart(ctx context.Context, cause Cause) (bool, error) {
	if !c.claim(cause) {
		return false, nil
	}
	return true, c.restart(ctx, cause)
}

// StartRestart claims the restart flag on the caller's goroutine and runs
// the rest of Restart in the background. The result says whether this call
// won the claim.
func (c *Controller) StartRestart(ctx context.Context, cause Cause) bool {
	if !c.claim(cause) {
		return false
	}
	go func() { _ = c.restart(ctx, cause) }()
	return true
}

func (c *Controller) claim(cause Cause) bool {
	if !c.cfg.State.TryBeginRestart() {
		slog.Info("restart already in progress, ignoring", "cause", cause.String())
		return false
	}
	return true
}

// restart runs the sequence after a successful claim. Failures are logged
// here so background callers can drop the error.
func (c *Controller) restart(ctx context.Context, cause Cause) error {
	slog.Warn("restarting", "cause", cause.String(), "cooldown", c.cfg.Cooldown)
	c.publish(hub.Event{Kind: hub.KindRestarting, Reason: cause.String(), Address: addrString(cause.To)})
	c.teardown()

	select {
	case <-c.cfg.Clock.After(c.cfg.Cooldown):
	case <-ctx.Done():
		slog.Info("restart abandoned, shutting down", "err", ctx.Err())
		return ctx.Err()
	}

	if c.cfg.MarkerPath != "" {
		m := Marker{
			Reason: cause.Reason,
			PID:    os.Getpid(),
			Time:   c.cfg.Clock.Now(),
			From:   addrString(cause.From),
			To:     addrString(cause.To),
		}
		if err := WriteMarker(c.cfg.MarkerPath, m); err != nil {
			slog.Warn("restart marker not written", "path", c.cfg.MarkerPath, "err", err)
		}
	}

	err := c.exec()
	if err == nil {
		return nil
	}
	slog.Error("re-exec failed, exiting", "err", err)
	if c.cfg.MarkerPath != "" {
		ClearMarker(c.cfg.MarkerPath)
	}
	c.cfg.Exit(1)
	return err
}

func (c *Controller) exec() error {
	exe, err := c.cfg.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	argv := slices.Clone(c.cfg.Args)
	if len(argv) == 0 {
		argv = []string{exe}
	}
	slog.Info("exec", "binary", exe, "args", argv[1:])
	if err := c.cfg.Exec(exe, argv, c.cfg.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}

// Quit stops the daemon for good: sets the stop flag, withdraws the
// advertisement, runs the stop hooks and closes Done. It reports false
// if a restart or quit already claimed the flag.
func (c *Controller) Quit(ctx context.Context) bool {
	if !c.claimStop() {
		return false
	}
	c.stop()
	return true
}

// StartQuit is Quit with the teardown moved to a new goroutine. The stop
// flag is already set when it returns true.
func (c *Controller) StartQuit(ctx context.Context) bool {
	if !c.claimStop() {
		return false
	}
	go c.stop()
	return true
}

func (c *Controller) claimStop() bool {
	if !c.cfg.State.TryBeginRestart() {
		return false
	}
	c.cfg.State.RequestStop()
	return true
}

func (c *Controller) stop() {
	slog.Info("quit requested")
	c.publish(hub.Event{Kind: hub.KindStopping, Reason: "quit"})
	c.teardown()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Controller) teardown() {
	if c.cfg.Discovery != nil {
		c.cfg.Discovery.Unregister()
	}
	c.mu.Lock()
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Controller) publish(ev hub.Event) {
	if c.cfg.Events != nil {
		c.cfg.Events.Publish(ev)
	}
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}
