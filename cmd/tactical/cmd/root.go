// Package cmd implements the tactical operator commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/laboveda/internal/bootstrap"
	"github.com/thebtf/laboveda/internal/config"
	"github.com/thebtf/laboveda/internal/tactical"
)

// app is the state shared by every command of one invocation.
type app struct {
	cfg     *config.Config
	rt      *bootstrap.Runtime
	log     zerolog.Logger
	out     io.Writer
	cfgFile string
	envFile string
	verbose bool
}

// Execute runs the root command with the process arguments.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root, a := newRootCmd(version, os.Stdout)
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(version string, out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "tactical",
		Short: "Operate the laboveda tactical catalog",
		Long: `Operate the laboveda tactical catalog.

Results are printed as YAML. Settings come from the settings file and
LABOVEDA_* environment variables; a .env file in the working directory
is loaded first when present.

Examples:
  tactical matrix create ALFA --name Alfa
  tactical promote 1234567890 --matrix ALFA
  tactical link SKU-ALFA-001 1234567891 1234567892
  tactical recalibrate --concurrency 8`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "settings file (default ~/.laboveda/settings.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading settings")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMatrixCmd(a),
		newNextIDCmd(a),
		newAssetCmd(a),
		newPromoteCmd(a),
		newLinkCmd(a),
		newIncinerateCmd(a),
		newOrphansCmd(a),
		newIngestCmd(a),
		newScoreCmd(a),
		newRecalibrateCmd(a),
		newRadarCmd(a),
		newKPIsCmd(a),
		newStatusCmd(a),
	)
	return root, a
}

// init loads settings and builds the logger. The database is opened lazily.
func (a *app) init(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}

	path := a.cfgFile
	if path == "" {
		path = config.SettingsPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg
	a.log = bootstrap.NewLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// engine opens the catalog on first use.
func (a *app) engine() (*tactical.Engine, error) {
	if a.rt == nil {
		if a.cfg.DBDriver == "sqlite" {
			if err := config.EnsureDataDir(); err != nil {
				return nil, err
			}
		}
		rt, err := bootstrap.Open(a.cfg, a.log)
		if err != nil {
			return nil, err
		}
		a.rt = rt
	}
	return a.rt.Engine, nil
}

func (a *app) close() error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

// emit prints v as YAML using its JSON field names.
func (a *app) emit(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
