package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"tiff2dzi/history"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHistoryCmd(v *viper.Viper, configFile *string, stdout, stderr io.Writer) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			if flags.HistoryDB == "" {
				return fmt.Errorf("history-db is not configured")
			}

			repo, err := history.NewRepository(flags.HistoryDB, newLogger(stderr, flags.LogLevel))
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.List(limit)
			if err != nil {
				return err
			}
			printRuns(stdout, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 for all)")
	return cmd
}

func printRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tBASE NAME\tSIZE\tLEVELS\tENGINE\tINPUT\tERROR")
	for _, run := range runs {
		size := "-"
		if run.Width > 0 {
			size = fmt.Sprintf("%dx%d", run.Width, run.Height)
		}
		errMsg := run.ErrorMessage
		if run.Stage != "" {
			errMsg = run.Stage + ": " + errMsg
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			run.StartedAt, run.Status, run.BaseName, size, run.Levels, run.Engine, run.InputPath, errMsg)
	}
	tw.Flush()
}
