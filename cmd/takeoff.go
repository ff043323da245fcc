package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildplane/takeoff-cli/internal/aggregate"
)

var takeoffCmd = &cobra.Command{
	Use:   "takeoff [spatial|classification]",
	Short: "Print an aggregated takeoff tree",
	Long:  "Groups classified elements by storey and entity type (spatial) or by taxonomy level (classification) and prints the rolled-up quantity columns. Zero quantities print as blank cells.",
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

		res, err := aggregate.Build(mode, env.input())
		if err != nil {
			return err
		}

		formatTakeoff(os.Stdout, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(takeoffCmd)
}

func formatTakeoff(out io.Writer, res *aggregate.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GROUP\tEA\tSF\tLF\tCY")

	for _, root := range res.Roots {
		writeTakeoffNode(w, root, 0)
	}
	if res.Unclassified != nil {
		writeTakeoffRow(w, aggregate.UnclassifiedLabel, res.Unclassified.Totals, 0)
	}
	writeTakeoffRow(w, "TOTAL", res.Totals, 0)
	_ = w.Flush()
}

func writeTakeoffNode(w io.Writer, n *aggregate.Node, depth int) {
	label := n.Label
	if n.Code != "" {
		label = n.Code + " " + n.Label
	}
	writeTakeoffRow(w, label, n.Totals, depth)
	for _, c := range n.Children {
		writeTakeoffNode(w, c, depth+1)
	}
}

func writeTakeoffRow(w io.Writer, label string, t aggregate.Totals, depth int) {
	_, _ = fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("  ", depth),
		label,
		aggregate.FormatCount(t.Count),
		aggregate.FormatQty(t.AreaSF),
		aggregate.FormatQty(t.LengthLF),
		aggregate.FormatQty(t.VolumeCY),
	)
}
