package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildplane/takeoff-cli/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models in the loaded session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		formatModels(os.Stdout, env.session)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func formatModels(out io.Writer, s *model.Session) {
	fmt.Fprintf(out, "Session %s (loaded %s)\n", s.ID, s.LoadedAt.Format("2006-01-02 15:04"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "IDX\tFILE\tSCHEMA\tELEMENTS")
	_, _ = fmt.Fprintln(w, "---\t----\t------\t--------")
	for _, m := range s.Models {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", m.Index, m.Filename, m.Schema, m.ElementCount)
	}
	_ = w.Flush()
}
