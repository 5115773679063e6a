package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"db-merge/internal/engine"
	"db-merge/internal/merge"
	"db-merge/internal/schema"
)

var dropOrphans bool

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "List the schema changes the model requires",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src, actions, err := diff(ctx)
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			fmt.Println("✓ Database matches the model. Nothing to do.")
			return nil
		}

		fmt.Printf("🔍 %d change(s) in execution order:\n", len(actions))
		blocked := 0
		for i, a := range actions {
			problems, err := a.ValidationErrors(ctx, src)
			if err != nil {
				return err
			}
			icon := "✓"
			if len(problems) > 0 {
				icon = "!"
				blocked++
			}
			fmt.Printf("[%s] [%02d/%02d] %-11s %-6s %s\n", icon, i+1, len(actions), a.ObjectType(), a.ActionType(), a.Description())
			for _, p := range problems {
				fmt.Printf("    └ Blocked: %s\n", p)
			}
		}
		rule()
		fmt.Printf("Total: %d change(s), %d blocked\n", len(actions), blocked)
		return nil
	},
}

// diff runs one compare against the connected database.
func diff(ctx context.Context) (*schema.Conn, []merge.Action, error) {
	set, err := loadModels()
	if err != nil {
		return nil, nil, err
	}
	src := source()

	opts := engine.Options{Logger: &Log}
	if dropOrphans {
		opts.DropOrphans = func(t *schema.TableInfo) bool {
			Log.Warn().Str("table", t.String()).Msg("table is not in the model and will be dropped")
			return true
		}
	}

	actions, err := engine.Compare(ctx, src, set, opts)
	if err != nil {
		return nil, nil, err
	}
	return src, actions, nil
}

func init() {
	RootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&dropOrphans, "drop-orphans", false, "Drop tables that are not in the model")
}
