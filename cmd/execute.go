package cmd

import (
	"fmt"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"db-merge/internal/engine"
	"db-merge/internal/errs"
)

var dryRun bool

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Validate and apply the schema changes",
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

		if dryRun {
			Log.Info().Msg("[SIMULATION] Dry-Run Mode Active: nothing will be applied")
			problems, err := engine.Validate(ctx, src, actions)
			if err != nil {
				return err
			}
			for i, a := range actions {
				fmt.Printf("[%02d] %s\n", i+1, a.Description())
			}
			for _, p := range problems {
				fmt.Printf("    └ Blocked: %s\n", p)
			}
			return nil
		}

		start := time.Now()
		current := "Validating"

		// 진행바는 액션 단위로 갱신
		uiprogress.Start()
		bar := uiprogress.AddBar(100).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return current + ": "
		})

		err = engine.Execute(ctx, DB, src, actions, engine.ExecuteOptions{
			Logger: &Log,
			OnProgress: func(p engine.Progress) {
				current = p.Description
				bar.Set(p.PercentComplete)
			},
		})

		uiprogress.Stop()

		if e, ok := errs.As(err); ok {
			switch {
			case errs.IsValidation(e):
				fmt.Println("\n❌ Nothing was applied:")
				for _, d := range e.Details {
					fmt.Printf("    └ %s\n", d)
				}
			case errs.IsExecution(e):
				fmt.Printf("\n❌ %s failed; earlier changes are committed.\n", e.Action)
				fmt.Printf("    └ SQL: %s\n", e.SQL)
			}
		}
		if err != nil {
			return err
		}

		rule()
		fmt.Printf("Applied %d change(s) in %s\n", len(actions), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(executeCmd)
	executeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only, without applying anything")
	executeCmd.Flags().BoolVar(&dropOrphans, "drop-orphans", false, "Drop tables that are not in the model")
}
