package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pmiettinen/libsbp/internal/config"
	"github.com/pmiettinen/libsbp/internal/logging"
	"github.com/pmiettinen/libsbp/internal/observability"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
	"github.com/pmiettinen/libsbp/internal/sbp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "0.1.0"

// app is the state shared by subcommands once flags, env and the config
// file are resolved.
type app struct {
	cfg config.Config
	reg *schema.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sbp",
		Short: "decode, encode and record SBP navigation streams",
		Long: fmt.Sprintf(`sbp (v%s)

Reads framed SBP binary messages from a file, socket or stdin, prints them
as JSON lines or text, turns JSON lines back into frames, and records raw
streams for later replay.

Every flag can also be set as SBP_<FLAG> in the environment or a .env file.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a TOML config file")
	pf.String("kind", "", "input kind (file, tcp, stdin)")
	pf.String("path", "", "input file path")
	pf.String("addr", "", "input tcp address host:port")
	pf.Int("read-size", 0, "bytes per read from the input")
	pf.Bool("reconnect", false, "redial a dropped tcp input")
	pf.String("format", "", "output format (json, text)")
	pf.String("unknown", "", "unknown msg_type policy (emit, drop)")
	pf.String("sender", "", "sender id for frames that do not carry one, e.g. 0x42")
	pf.String("metrics-addr", "", "serve /health and /metrics on this address")
	pf.String("capture-dir", "", "capture store directory")

	root.AddCommand(
		newDumpCmd(a),
		newEncodeCmd(a),
		newRecordCmd(a),
		newReplayCmd(a),
		newSessionsCmd(a),
		newConfigCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of sbp",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sbp v%s\n", Version)
			},
		},
	)
	return root
}

func loadEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// setup resolves configuration in order: defaults, config file, then
// environment and flags.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	loadEnv()
	logging.ConfigureRuntime()

	v := viper.New()
	v.SetEnvPrefix("sbp")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := applyOverrides(v, &cfg); err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	reg, err := sbp.NewRegistry()
	if err != nil {
		return err
	}
	a.cfg, a.reg = cfg, reg
	return nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) error {
	set := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	set("path", &cfg.Input.Path)
	set("addr", &cfg.Input.Addr)
	set("format", &cfg.Output.Format)
	set("unknown", &cfg.Output.Unknown)
	set("metrics-addr", &cfg.Metrics.Addr)
	set("capture-dir", &cfg.Capture.Dir)

	switch {
	case v.IsSet("kind"):
		cfg.Input.Kind = strings.TrimSpace(v.GetString("kind"))
	case v.IsSet("path"):
		cfg.Input.Kind = config.InputFile
	case v.IsSet("addr"):
		cfg.Input.Kind = config.InputTCP
	}
	if v.IsSet("read-size") {
		cfg.Input.ReadSize = v.GetInt("read-size")
	}
	if v.IsSet("reconnect") {
		cfg.Input.Reconnect = v.GetBool("reconnect")
	}
	if v.IsSet("sender") {
		n, err := strconv.ParseUint(strings.TrimSpace(v.GetString("sender")), 0, 16)
		if err != nil {
			return fmt.Errorf("sender: %w", err)
		}
		cfg.Sender = uint16(n)
	}
	return nil
}

// startMetrics serves the metrics endpoint when configured. The returned
// stop function is always safe to call.
func (a *app) startMetrics(name string) (func(), error) {
	if a.cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	srv := observability.NewServer(name)
	if err := srv.Start(a.cfg.Metrics.Addr); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
