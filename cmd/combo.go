package cmd

import (
	"fmt"

	"modloader/core/combo"
	"modloader/core/config"

	"github.com/spf13/cobra"
)

// comboCmd groups the combo commands.
var comboCmd = &cobra.Command{
	Use:   "combo",
	Short: "Inspect combo request planning",
}

// comboPlanCmd prints the requests a fetch of ids would issue.
var comboPlanCmd = &cobra.Command{
	Use:   "plan [ids...]",
	Short: "Print the requests a fetch of the given modules would issue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		planner := combo.NewPlanner(cfg.Combo)
		w := cmd.OutOrStdout()
		for i, req := range planner.Plan(args) {
			kind := "single"
			if req.Combined {
				kind = "combo"
			}
			fmt.Fprintf(w, "%d. [%s] package=%s charset=%s\n", i+1, kind, req.Package, req.Charset)
			fmt.Fprintf(w, "   %s\n", req.URL)
			for j, id := range req.Modules {
				fmt.Fprintf(w, "   - %s -> %s\n", id, req.Paths[j])
			}
		}
		return nil
	},
}

func init() {
	comboCmd.AddCommand(comboPlanCmd)
	RootCmd.AddCommand(comboCmd)
}
