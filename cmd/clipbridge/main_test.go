package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go.klb.dev/clipbridge/internal/api"
	"go.klb.dev/clipbridge/internal/clip"
	"go.klb.dev/clipbridge/internal/control"
	"go.klb.dev/clipbridge/internal/history"
	"go.klb.dev/clipbridge/internal/hub"
	"go.klb.dev/clipbridge/internal/ipc"
	"go.klb.dev/clipbridge/internal/message"
)

// isolate keeps bindViper away from the developer's own config file.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"CLIPBRIDGE_TOKEN", "CLIPBRIDGE_PORT", "CLIPBRIDGE_HISTORY_FILE", "CLIPBRIDGE_SERVER", "CLIPBRIDGE_SOCKET"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigPrecedence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "clipbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 9000
token = "from-file"
name = "file-name"
clipboard = "memory"
`), 0o600))
	t.Setenv("CLIPBRIDGE_TOKEN", "from-env")
	t.Setenv("CLIPBRIDGE_HISTORY_FILE", "/var/lib/clipbridge/h.json")

	out, err := execute(t, newConfigCmd(), "", "--config", path, "--name", "flag-name", "--show-token")
	require.NoError(t, err)

	var got effectiveConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.ConfigFile)
	assert.Equal(t, 9000, got.Port, "file beats default")
	assert.Equal(t, "from-env", got.Token, "env beats file")
	assert.Equal(t, "flag-name", got.Name, "flag beats file")
	assert.Equal(t, "/var/lib/clipbridge/h.json", got.HistoryFile, "dashed keys map to underscored env vars")
	assert.Equal(t, "memory", got.Clipboard)
	assert.Equal(t, "0.0.0.0", got.Addr)
}

func TestConfigMasksToken(t *testing.T) {
	isolate(t)
	out, err := execute(t, newConfigCmd(), "", "--token", "hunter22")
	require.NoError(t, err)

	var got effectiveConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "h***2", got.Token)
	assert.NotContains(t, out, "hunter22")
}

func TestConfigDefaultToken(t *testing.T) {
	isolate(t)
	out, err := execute(t, newConfigCmd(), "", "--show-token")
	require.NoError(t, err)
	assert.Contains(t, out, "token: "+defaultToken)
}

func TestConfigRejectsUnreadableFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = = 1"), 0o600))

	_, err := execute(t, newConfigCmd(), "", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config:")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken(""))
	assert.Equal(t, "***", maskToken("ab"))
	assert.Equal(t, "a***c", maskToken("abc"))
}

func TestSendRejectsBlankInput(t *testing.T) {
	isolate(t)
	for _, tc := range []struct {
		name  string
		stdin string
		args  []string
	}{
		{"blank arg", "", []string{"   ", "--server", "127.0.0.1:1"}},
		{"empty stdin", "", []string{"--server", "127.0.0.1:1"}},
		{"whitespace stdin", " \n\t", []string{"--server", "127.0.0.1:1"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, newSendCmd(), tc.stdin, tc.args...)
			require.Error(t, err)
			assert.Equal(t, "nothing to send", err.Error())
		})
	}
}

func TestSendAndFetchAgainstServer(t *testing.T) {
	isolate(t)
	dev := clip.NewMemory()
	store := history.Open(filepath.Join(t.TempDir(), "history.json"))
	srv := httptest.NewServer(api.NewHandler(api.Config{Token: "s3cret", Clipboard: dev, History: store}))
	defer srv.Close()

	_, err := execute(t, newSendCmd(), "from stdin\n", "--server", srv.URL, "--token", "s3cret", "--quiet")
	require.NoError(t, err)
	text, err := dev.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", text)
	assert.Equal(t, []string{"from stdin\n"}, store.Entries())

	out, err := execute(t, newFetchCmd(), "", "--server", srv.URL, "--token", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "from stdin")

	_, err = execute(t, newSendCmd(), "", "nope", "--server", srv.URL, "--token", "wrong")
	require.Error(t, err)
}

// historyDaemon answers control requests from a real history store.
type historyDaemon struct {
	mu    sync.Mutex
	store *history.Store
	dev   *clip.Memory
}

func (d *historyDaemon) Status() message.Status {
	return message.Status{Version: "test", Port: 8000, Entries: d.store.Len(), Clipboard: "memory"}
}

func (d *historyDaemon) Entries() []string       { return d.store.Entries() }
func (d *historyDaemon) Clear()                  { d.store.Clear() }
func (d *historyDaemon) Delete(text string) bool { return d.store.Delete(text) }
func (d *historyDaemon) Restart() bool           { return false }
func (d *historyDaemon) Quit() bool              { return false }

func (d *historyDaemon) Select(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.WriteText(text); err != nil {
		return err
	}
	d.store.Add(text)
	return nil
}

func startControl(t *testing.T, entries ...string) (*historyDaemon, string) {
	t.Helper()
	d := &historyDaemon{
		store: history.Open(filepath.Join(t.TempDir(), "history.json")),
		dev:   clip.NewMemory(),
	}
	// Oldest first so entries ends up newest first.
	for i := len(entries) - 1; i >= 0; i-- {
		d.store.Add(entries[i])
	}

	sock := filepath.Join(t.TempDir(), "c.sock")
	ln, err := ipc.Listen(sock)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = control.NewServer(d, hub.New()).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("control server did not stop")
		}
	})
	return d, sock
}

func TestHistoryCommands(t *testing.T) {
	isolate(t)
	d, sock := startControl(t, "three", "two", "one")

	out, err := execute(t, newHistoryCmd(), "", "--socket", sock)
	require.NoError(t, err)
	assert.Equal(t, "  1  three\n  2  two\n  3  one\n", out)

	_, err = execute(t, newHistoryCmd(), "", "delete", "2", "--socket", sock)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "one"}, d.store.Entries())

	_, err = execute(t, newHistoryCmd(), "", "select", "2", "--socket", sock)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, d.store.Entries())
	text, _ := d.dev.ReadText()
	assert.Equal(t, "one", text)

	out, err = execute(t, newHistoryCmd(), "", "list", "--json", "--socket", sock)
	require.NoError(t, err)
	assert.JSONEq(t, `["one","three"]`, out)

	_, err = execute(t, newHistoryCmd(), "", "clear", "--socket", sock)
	require.NoError(t, err)
	assert.Empty(t, d.store.Entries())

	out, err = execute(t, newHistoryCmd(), "", "list", "--json", "--socket", sock)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestHistoryEntryNumbers(t *testing.T) {
	isolate(t)
	_, sock := startControl(t, "only")

	for _, arg := range []string{"0", "x"} {
		_, err := execute(t, newHistoryCmd(), "", "delete", arg, "--socket", sock)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "invalid entry number")
	}
	_, err := execute(t, newHistoryCmd(), "", "select", "2", "--socket", sock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry 2")
}

func TestStatusCommand(t *testing.T) {
	isolate(t)
	_, sock := startControl(t, "a", "b")

	out, err := execute(t, newStatusCmd(), "", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, "History:")
	assert.Contains(t, out, "2 entries")
	assert.Contains(t, out, "(none yet)")

	out, err = execute(t, newStatusCmd(), "", "--json", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, `"entries": 2`)
	assert.Contains(t, out, `"clipboard": "memory"`)
}

func TestRestartAndStopReportRefusal(t *testing.T) {
	isolate(t)
	_, sock := startControl(t)

	out, err := execute(t, newRestartCmd(), "", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, "already restarting or stopping")

	out, err = execute(t, newStopCmd(), "", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, "already restarting or stopping")
}

func TestIsContainerID(t *testing.T) {
	assert.True(t, isContainerID("0123456789ab"))
	assert.False(t, isContainerID("laptop"))
	assert.False(t, isContainerID("0123456789AB"))
}
