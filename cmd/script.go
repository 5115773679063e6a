package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"db-merge/internal/engine"
)

var outFile string

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Render the migration script without applying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src, actions, err := diff(ctx)
		if err != nil {
			return err
		}

		rendered, err := engine.Script(ctx, src, actions)
		if err != nil {
			return err
		}

		if outFile == "" {
			fmt.Print(rendered.Text)
			return nil
		}
		if err := os.WriteFile(outFile, []byte(rendered.Text), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", outFile)
		}
		Log.Info().Str("file", outFile).Int("actions", len(rendered.Spans)).Msg("script written")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(scriptCmd)
	scriptCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the script to a file instead of stdout")
	scriptCmd.Flags().BoolVar(&dropOrphans, "drop-orphans", false, "Drop tables that are not in the model")
}
