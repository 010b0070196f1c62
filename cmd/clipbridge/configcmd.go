package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// effectiveConfig is what "clipbridge config" prints.
type effectiveConfig struct {
	ConfigFile  string `yaml:"config_file,omitempty"`
	Addr        string `yaml:"addr"`
	Port        int    `yaml:"port"`
	Token       string `yaml:"token"`
	HistoryFile string `yaml:"history_file"`
	Clipboard   string `yaml:"clipboard"`
	TrackLocal  bool   `yaml:"track_local"`
	ProbeTarget string `yaml:"probe_target"`
	Name        string `yaml:"name"`
	Socket      string `yaml:"socket,omitempty"`
	LogFormat   string `yaml:"log_format"`
	LogLevel    string `yaml:"log_level,omitempty"`
}

func newConfigCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the settings serve would run with",
		Long: `Resolves defaults, config file, CLIPBRIDGE_* env vars and flags exactly as
"clipbridge serve" does and prints the result as YAML. The token is masked
unless --show-token is given.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(resolveConfig(v))
		},
	}

	addServeFlags(cmd.Flags())
	cmd.Flags().Bool("show-token", false, "print the token instead of masking it")
	return cmd
}

func resolveConfig(v *viper.Viper) effectiveConfig {
	token := tokenFrom(v)
	if !v.GetBool("show-token") {
		token = maskToken(token)
	}
	return effectiveConfig{
		ConfigFile:  v.ConfigFileUsed(),
		Addr:        v.GetString("addr"),
		Port:        v.GetInt("port"),
		Token:       token,
		HistoryFile: v.GetString("history-file"),
		Clipboard:   v.GetString("clipboard"),
		TrackLocal:  v.GetBool("track-local"),
		ProbeTarget: v.GetString("probe-target"),
		Name:        v.GetString("name"),
		Socket:      v.GetString("socket"),
		LogFormat:   v.GetString("log-format"),
		LogLevel:    v.GetString("log-level"),
	}
}

func maskToken(t string) string {
	if len(t) <= 2 {
		return "***"
	}
	return t[:1] + "***" + t[len(t)-1:]
}
