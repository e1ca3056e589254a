package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// resolveCmd prints the initialization order of modules.
var resolveCmd = &cobra.Command{
	Use:   "resolve [ids...]",
	Short: "Print the initialization order of modules",
	Long: `Loads the requested modules and prints their dependency closure in the
order the modules initialize, dependencies first, with the final status of
each module. A cycle is cut at the first module seen again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := bootstrap()
		if err != nil {
			return err
		}
		defer s.close()

		ctx := commandContext(cmd)
		if _, err := s.loader.Await(ctx, args...); err != nil {
			// The order is still useful when some module failed.
			s.log.Warn("Load failed", zap.Error(err))
		}

		w := cmd.OutOrStdout()
		for i, id := range s.loader.Order(args...) {
			info, _ := s.loader.Status(id)
			line := fmt.Sprintf("%3d  %-30s %-12s %s", i+1, id, info.Status, info.Package)
			if info.Error != "" {
				line += "  " + info.Error
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(resolveCmd)
}
