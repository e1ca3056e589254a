package cmd

import (
	"context"
	"fmt"

	"modloader/core/combo"
	"modloader/core/config"
	"modloader/core/database"
	"modloader/core/logger"
	"modloader/core/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// catalogCmd groups the SQL manifest catalog commands.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage manifests stored in the database",
}

// catalogImportCmd stores every manifest below a directory.
var catalogImportCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Import the manifests of a directory into the catalog table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer logg.Sync()

		files, err := readManifests(args[0])
		if err != nil {
			return err
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		catalog := transport.NewCatalog(db)
		if err := catalog.Migrate(); err != nil {
			return fmt.Errorf("migrate catalog: %w", err)
		}

		planner := combo.NewPlanner(cfg.Combo)
		ctx := commandContext(cmd)
		for _, f := range files {
			id, _ := planner.ModuleOf(f.Path)
			if len(f.Docs) == 1 && f.Docs[0].ID != "" {
				id = f.Docs[0].ID
			}
			if err := catalog.Put(ctx, transport.Manifest{Path: f.Path, ModuleID: id, Body: string(f.Body)}); err != nil {
				return err
			}
			logg.Info("Imported manifest", zap.String("path", f.Path), zap.String("module", id), zap.Int("documents", len(f.Docs)))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d manifests\n", len(files))
		return nil
	},
}

// catalogListCmd prints the stored manifests.
var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the manifests in the catalog table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}

		rows, err := transport.NewCatalog(db).List(commandContext(cmd))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, row := range rows {
			fmt.Fprintf(w, "%-40s %-30s %s\n", row.Path, row.ModuleID, row.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogListCmd)
	RootCmd.AddCommand(catalogCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
