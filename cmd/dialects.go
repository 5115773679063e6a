package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"db-merge/internal/dialect"
)

var dialectsCmd = &cobra.Command{
	Use:         "dialects",
	Short:       "List the supported database drivers",
	Annotations: map[string]string{offline: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range dialect.Names() {
			d, err := dialect.Get(name)
			if err != nil {
				continue
			}
			fmt.Printf("%-12s %s\n", name, d.Name())
		}
	},
}

func init() {
	RootCmd.AddCommand(dialectsCmd)
}
