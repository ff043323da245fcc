package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/buildplane/takeoff-cli/internal/aggregate"
	"github.com/buildplane/takeoff-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write takeoff reports to CSV or XLSX",
}

var exportTakeoffCmd = &cobra.Command{
	Use:   "takeoff [spatial|classification]",
	Short: "Write a per-element takeoff CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeArg := "spatial"
		if len(args) == 1 {
			modeArg = args[0]
		}
		mode, err := aggregate.ParseMode(modeArg)
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		path := exportPath(cmd, "takeoff-"+string(mode)+".csv")
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "export takeoff: create file")
		}
		defer f.Close() //nolint:errcheck

		if err := export.Takeoff(f, mode, env.input()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

var exportClassificationsCmd = &cobra.Command{
	Use:   "classifications",
	Short: "Write the per-element classification listing CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		path := exportPath(cmd, "classifications.csv")
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "export classifications: create file")
		}
		defer f.Close() //nolint:errcheck

		if err := export.Classification(f, env.input()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

var exportWorkbookCmd = &cobra.Command{
	Use:   "workbook",
	Short: "Write both takeoff trees to one XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		spatial, err := aggregate.Build(aggregate.ModeSpatial, env.input())
		if err != nil {
			return err
		}
		classification, err := aggregate.Build(aggregate.ModeClassification, env.input())
		if err != nil {
			return err
		}

		path := exportPath(cmd, "takeoff.xlsx")
		if err := export.Workbook(path, spatial, classification); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

func exportPath(cmd *cobra.Command, name string) string {
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		return out
	}
	return filepath.Join(cfg.Export.Dir, name)
}

func init() {
	for _, c := range []*cobra.Command{exportTakeoffCmd, exportClassificationsCmd, exportWorkbookCmd} {
		c.Flags().String("out", "", "output file path (default derived from config export.dir)")
		exportCmd.AddCommand(c)
	}
	rootCmd.AddCommand(exportCmd)
}
