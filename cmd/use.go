package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"modloader/core/loader"
	"modloader/core/module"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	useTimeout time.Duration
	useFormat  string
)

// useCmd loads modules and prints their exports.
var useCmd = &cobra.Command{
	Use:   "use [ids...]",
	Short: "Load modules and print their exports",
	Long: `Resolves the requested modules, fetches every missing manifest through the
configured transport and prints the exports of each requested module.
Ids may be given as separate arguments or as comma separated lists.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := bootstrap()
		if err != nil {
			return err
		}
		defer s.close()

		ctx := commandContext(cmd)
		if useTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, useTimeout)
			defer cancel()
		}

		ids := module.SplitIDs(args...)
		exports, err := s.loader.Await(ctx, ids...)
		if err != nil {
			var loadErr *loader.LoadError
			if errors.As(err, &loadErr) {
				printFailures(cmd.ErrOrStderr(), loadErr)
			}
			return err
		}

		out := make(map[string]any, len(ids))
		for i, id := range ids {
			out[id] = exports[i]
		}
		return render(cmd.OutOrStdout(), useFormat, out)
	},
}

func init() {
	useCmd.Flags().DurationVar(&useTimeout, "timeout", 0, "Abort the session after this long (0 relies on the round limits)")
	useCmd.Flags().StringVarP(&useFormat, "format", "f", "yaml", "Output format: yaml or json")
	RootCmd.AddCommand(useCmd)
}

func printFailures(w io.Writer, err *loader.LoadError) {
	fmt.Fprintf(w, "\n--- %s failed ---\n", err.Action)
	for _, f := range err.Failures {
		if f.Err != nil {
			fmt.Fprintf(w, "%-30s %-20s %v\n", f.ID, f.Kind, f.Err)
			continue
		}
		fmt.Fprintf(w, "%-30s %s\n", f.ID, f.Kind)
	}
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
