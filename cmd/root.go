package main

import (
	"context"
	"fmt"
	"io"

	"tiff2dzi/config"
	"tiff2dzi/contracts"
	"tiff2dzi/converter"
	"tiff2dzi/files_manager"
	"tiff2dzi/history"
	"tiff2dzi/publish"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const usageText = `Usage: tiff2dzi <input.tiff> [output_dir]
Example: tiff2dzi nasa-image.tiff dzi-images
`

type InputFlags = contracts.InputFlags

type app struct {
	converter *converter.Converter
	closers   []func() error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "tiff2dzi <input.tiff> [output_dir]",
		Short:         "Convert a TIFF image into a Deep Zoom Image pyramid and thumbnail",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				fmt.Fprint(stdout, usageText)
				return errExit
			}

			request := contracts.ConversionRequest{
				InputPath: args[0],
				OutputDir: contracts.DefaultOutputDir,
			}
			if len(args) == 2 {
				request.OutputDir = args[1]
			}

			if err := files_manager.CheckInputFile(request.InputPath); err != nil {
				fmt.Fprintf(stdout, "Error: %v\n", err)
				return errExit
			}

			a, err := setup(cmd.Context(), v, configFile, stdout, stderr)
			if err != nil {
				fmt.Fprintf(stdout, "[ERROR]: %v\n", err)
				return errExit
			}
			defer a.close()

			if !a.converter.Run(cmd.Context(), request) {
				return errExit
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./tiff2dzi.yaml)")
	flags.String("engine", converter.DefaultEngine, "imaging engine")
	flags.Int("workers", config.DefaultWorkers(), "tile encoding workers")
	flags.String("log-level", "warn", "diagnostic log level (debug, info, warn, error)")
	flags.String("history-db", "", "record conversions in this SQLite database")
	flags.String("s3-bucket", "", "upload results to this S3 bucket")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.String("s3-prefix", "", "key prefix for uploaded objects")

	for _, name := range []string{"engine", "workers", "log-level", "history-db", "s3-bucket", "s3-region", "s3-prefix"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	rootCmd.AddCommand(newHistoryCmd(v, &configFile, stdout, stderr))
	return rootCmd
}

func loadConfig(v *viper.Viper, configFile string) (*InputFlags, error) {
	flags, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(flags); err != nil {
		return nil, err
	}
	return flags, nil
}

func newLogger(stderr io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func setup(ctx context.Context, v *viper.Viper, configFile string, stdout, stderr io.Writer) (*app, error) {
	flags, err := loadConfig(v, configFile)
	if err != nil {
		return nil, err
	}
	log := newLogger(stderr, flags.LogLevel)

	engine, err := converter.NewEngine(flags.Engine, converter.EngineOptions{
		Workers: flags.Workers,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	a := &app{converter: converter.New(engine, stdout, log)}

	if flags.HistoryDB != "" {
		repo, err := history.NewRepository(flags.HistoryDB, log)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		a.converter.Journal = repo
		a.closers = append(a.closers, repo.Close)
	}

	if flags.S3Bucket != "" {
		publisher, err := publish.NewS3Publisher(ctx, flags.S3Bucket, flags.S3Region, flags.S3Prefix, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("publish: %w", err)
		}
		a.converter.Publisher = publisher
	}

	log.WithFields(logrus.Fields{
		"engine":  engine.Name(),
		"workers": flags.Workers,
	}).Debug("converter_ready")
	return a, nil
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
}
