package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/logging"
)

// defaultToken is used when no token is configured. Anyone on the network
// knows it, so serve warns loudly.
const defaultToken = "clipbridge"

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPBRIDGE_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPBRIDGE_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clipbridge")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clipbridge/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "clipbridge"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPBRIDGE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(f *pflag.FlagSet) {
	f.Bool("no-background", false, "run interactively: tinter logs + debug level")
	f.String("log-format", "auto", "log format: auto|text|json")
	f.String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(f *pflag.FlagSet) {
	f.String("config", "", "path to config file (overrides auto-discovery)")
}

// addServerFlags adds the flags used by commands that talk HTTP to a
// clipboard server.
func addServerFlags(f *pflag.FlagSet) {
	f.String("server", "", "server URL or host:port (default: first one found via mDNS)")
	f.String("token", "", "shared secret sent as X-Auth-Token (default \""+defaultToken+"\")")
	f.Duration("timeout", defaultBrowseTimeout, "how long to search the network for a server")
}

// addSocketFlag adds --socket to commands that talk to the local daemon.
func addSocketFlag(f *pflag.FlagSet) {
	f.String("socket", "", "control socket path (default: $CLIPBRIDGE_SOCKET, $XDG_RUNTIME_DIR or $TMPDIR)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// tokenFrom returns the configured token, falling back to defaultToken.
func tokenFrom(v *viper.Viper) string {
	if t := v.GetString("token"); t != "" {
		return t
	}
	return defaultToken
}

// defaultHistoryPath is $XDG_CONFIG_HOME/clipbridge/history.json or the
// platform equivalent.
func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "clipbridge", "history.json")
}
