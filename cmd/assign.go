package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/buildplane/takeoff-cli/internal/model"
)

var assignCmd = &cobra.Command{
	Use:   "assign <model:id> <code>",
	Short: "Manually assign a classification code to one element",
	Long:  "Sets a manual override on the element identified by its session key (model index and native ID, e.g. 0:42). Overrides win over every derived source and persist across reloads. Use 'assign clear' to remove one.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ref, err := model.ParseSessionRef(args[0])
		if err != nil {
			return eris.Wrap(err, "assign")
		}

		changed, err := env.engine.SetManual(cmd.Context(), ref, args[1])
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintln(os.Stdout, "No change.")
			return nil
		}

		rec, _ := env.engine.Classification(ref)
		fmt.Fprintf(os.Stdout, "%s -> %s (%s)\n", ref, rec.Code, env.taxo.LeafLabel(rec.Code))
		return nil
	},
}

var assignClearCmd = &cobra.Command{
	Use:   "clear <model:id>",
	Short: "Remove a manual override and re-derive the classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ref, err := model.ParseSessionRef(args[0])
		if err != nil {
			return eris.Wrap(err, "assign clear")
		}

		if _, err := env.engine.SetManual(cmd.Context(), ref, ""); err != nil {
			return err
		}

		rec, _ := env.engine.Classification(ref)
		if rec.Code == "" {
			fmt.Fprintf(os.Stdout, "%s -> unclassified\n", ref)
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s -> %s (%s, %s)\n", ref, rec.Code, env.taxo.LeafLabel(rec.Code), rec.Source)
		return nil
	},
}

var assignBulkCmd = &cobra.Command{
	Use:   "bulk <entity-type> <code>",
	Short: "Assign a code to every element of an entity type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.engine.BulkAssign(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Assigned %s to %d element(s) of type %s\n", args[1], n, args[0])
		return nil
	},
}

func init() {
	assignCmd.AddCommand(assignClearCmd)
	assignCmd.AddCommand(assignBulkCmd)
	rootCmd.AddCommand(assignCmd)
}
