package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buildplane/takeoff-cli/internal/ingest"
)

var loadCmd = &cobra.Command{
	Use:   "load <dump.json> [dump.json...]",
	Short: "Load model dump files into a new session",
	Long:  "Parses one or more model dump files, replaces any previously loaded session, and reports what was loaded. Saved classification overrides are keyed by filename and element ID, so they survive the replacement.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		session, err := ingest.LoadFiles(ctx, args, cfg.Ingest.MaxConcurrentFiles)
		if err != nil {
			return eris.Wrap(err, "load")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.ReplaceSession(ctx, session); err != nil {
			return eris.Wrap(err, "load: persist session")
		}

		zap.L().Info("session loaded",
			zap.String("session", session.ID),
			zap.Int("models", len(session.Models)),
			zap.Int("elements", len(session.Elements)),
			zap.Int("storeys", len(session.Storeys)),
		)

		fmt.Fprintf(os.Stdout, "Loaded %d elements from %d model(s) into session %s\n",
			len(session.Elements), len(session.Models), session.ID)
		for _, m := range session.Models {
			fmt.Fprintf(os.Stdout, "  [%d] %s (%s, %d elements)\n",
				m.Index, m.Filename, m.Schema, m.ElementCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
