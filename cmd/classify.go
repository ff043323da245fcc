package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildplane/takeoff-cli/internal/classify"
	"github.com/buildplane/takeoff-cli/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run the classification cascade and show a summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		formatSummary(os.Stdout, env.summary)

		showUnclassified, _ := cmd.Flags().GetBool("unclassified")
		if showUnclassified {
			formatUnclassified(os.Stdout, env)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().Bool("unclassified", false, "list elements no cascade step could classify")
	rootCmd.AddCommand(classifyCmd)
}

func formatSummary(out io.Writer, s classify.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Elements:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Manual:\t%d\n", s.Manual)
	_, _ = fmt.Fprintf(w, "  Explicit data:\t%d\n", s.Explicit)
	_, _ = fmt.Fprintf(w, "  Heuristic:\t%d\n", s.Heuristic)
	_, _ = fmt.Fprintf(w, "  Type default:\t%d\n", s.TypeDefault)
	_, _ = fmt.Fprintf(w, "  Unclassified:\t%d\n", s.Unclassified)
	_ = w.Flush()
}

func formatUnclassified(out io.Writer, env *takeoffEnv) {
	var refs []model.SessionRef
	for ref, rec := range env.engine.Classifications() {
		if rec.Code == "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Model != refs[j].Model {
			return refs[i].Model < refs[j].Model
		}
		return refs[i].NativeID < refs[j].NativeID
	})

	fmt.Fprintln(out, "\nUnclassified elements:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tTYPE\tNAME\tSTOREY")
	for _, ref := range refs {
		el, ok := env.engine.Element(ref)
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ref, el.EntityType, el.Name, el.Storey)
	}
	_ = w.Flush()
}
