package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edgeflare/json2avro/pkg/config"

	// Register built-in connectors
	_ "github.com/edgeflare/json2avro/pkg/pipeline/peer/debug"
	_ "github.com/edgeflare/json2avro/pkg/pipeline/peer/kafka"
)

// app carries state shared by subcommands once the config is loaded.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "json2avro",
		Short:         "json2avro converts JSON records to Avro",
		Long:          `json2avro converts JSON documents into the Avro encoding of a fixed schema, one record at a time`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger == nil {
				return
			}
			if err := a.logger.Sync(); err != nil {
				a.logger.Debug("Logger sync failed", zap.Error(err))
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/json2avro.yaml)")
	flags.StringP("log-level", "L", "info", "log at this level (debug, info, warn, error, fatal, none)")
	cobra.CheckErr(a.v.BindPFlag("log.level", flags.Lookup("log-level")))

	rootCmd.AddCommand(newPipelineCmd(a), newConvertCmd(a))
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	if cfg.File != "" {
		logger.Debug("Using config file", zap.String("file", cfg.File))
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// newLogger builds a zap logger for cfg. Level "none" disables logging.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Level == "none" {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
