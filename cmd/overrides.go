package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/buildplane/takeoff-cli/internal/model"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Inspect and exchange manual classification overrides",
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved overrides",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		overrides := env.engine.Overrides()
		if len(overrides) == 0 {
			fmt.Fprintln(os.Stderr, "No overrides saved.")
			return nil
		}
		formatOverrides(os.Stdout, overrides, env)
		return nil
	},
}

var overridesExportCmd = &cobra.Command{
	Use:   "export <file.json>",
	Short: "Write overrides to a JSON interchange file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := env.engine.ExportOverrides()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0644); err != nil {
			return eris.Wrap(err, "overrides export: write file")
		}
		fmt.Fprintf(os.Stdout, "Exported %d override(s) to %s\n", len(env.engine.Overrides()), args[0])
		return nil
	},
}

var overridesImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Merge overrides from a JSON interchange file",
	Long:  "Reads a previously exported override file and merges its entries over the saved set. Both the current versioned format and the legacy flat map are accepted. Entries with malformed keys or unknown codes are skipped with a warning.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "overrides import: read file")
		}

		n, err := env.engine.ImportOverrides(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d override(s) from %s\n", n, args[0])
		return nil
	},
}

func init() {
	overridesCmd.AddCommand(overridesListCmd)
	overridesCmd.AddCommand(overridesExportCmd)
	overridesCmd.AddCommand(overridesImportCmd)
	rootCmd.AddCommand(overridesCmd)
}

func formatOverrides(out io.Writer, overrides map[model.ElementID]string, env *takeoffEnv) {
	ids := make([]model.ElementID, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ELEMENT\tCODE\tLABEL")
	for _, id := range ids {
		code := overrides[id]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", id, code, env.taxo.LeafLabel(code))
	}
	_ = w.Flush()
}
