package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/client"
	"go.klb.dev/clipbridge/internal/discovery"
)

const defaultBrowseTimeout = 3 * time.Second

// envKeyReplacer maps flag names like history-file to CLIPBRIDGE_HISTORY_FILE.
var envKeyReplacer = strings.NewReplacer("-", "_")

func isContainerID(s string) bool {
	if len(s) < 12 || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// defaultName returns a human-readable identifier for this host, used as
// the advertised instance suffix.
func defaultName() string {
	for _, env := range []string{
		"CLIPBRIDGE_NAME",
		"CONTAINER_NAME",
		"HOSTNAME_FRIENDLY",
	} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	h, _, _ = strings.Cut(h, ".")
	if isContainerID(h) {
		return "container-" + h[:8]
	}
	return h
}

// dialServer returns a client for --server, or for the first server
// advertised on the network when --server is empty.
func dialServer(ctx context.Context, v *viper.Viper) (*client.Client, error) {
	token := tokenFrom(v)
	if server := v.GetString("server"); server != "" {
		return client.New(server, token), nil
	}

	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultBrowseTimeout
	}
	slog.Debug("searching for a clipboard server", "timeout", timeout)
	services, err := discovery.Browse(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, errors.New("no clipboard server found on the network; pass --server")
	}
	if len(services) > 1 {
		slog.Info("several servers found, using the first", "count", len(services), "instance", services[0].Instance)
	}
	slog.Debug("server found", "instance", services[0].Instance, "url", services[0].URL())
	return client.New(services[0].URL(), token), nil
}

// commandContext bounds a one-shot CLI request.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm", int(age.Minutes()))
	}
	return age.Round(time.Minute).String()
}
