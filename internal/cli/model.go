package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ctxprobe/internal/catalog"
	"ctxprobe/internal/syncer"
)

func buildModelListCmd(a *app) *cobra.Command {
	var flagAvailable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models installed on the serving host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if flagAvailable {
				path := catalog.Resolve(a.cfg.CatalogFile, a.cfg.CatalogFile)
				models, err := catalog.LoadCatalog(path)
				if err != nil {
					return err
				}
				for _, m := range models {
					for _, tag := range m.Tags {
						fmt.Fprintf(os.Stdout, "%s:%s\n", m.Name, tag)
					}
				}
				a.log.Info().Int("models", len(models)).Str("catalog", path).Msg("catalog listed")
				return nil
			}

			client := a.client()
			models, err := client.ListModels(ctx)
			if err != nil {
				return err
			}
			for _, name := range models {
				fmt.Fprintln(os.Stdout, name)
			}
			a.log.Info().Int("models", len(models)).Msg("installed models listed")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&flagAvailable, "available", "A", false, "list catalog tags instead of installed models")
	return cmd
}

func buildModelInitCmd(a *app) *cobra.Command {
	var flagSelection string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed the selection file from the installed models",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := catalog.Resolve(firstNonEmpty(flagSelection, a.cfg.SelectionFile), a.cfg.SelectionFile)
			models, err := syncer.InitSelection(ctx, a.client(), path, a.log)
			if err != nil {
				return err
			}
			for _, name := range models {
				fmt.Fprintln(os.Stdout, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagSelection, "config-file", "f", "", "selection file (default selected_tags.conf)")
	return cmd
}

func buildModelApplyCmd(a *app) *cobra.Command {
	var flagSelection string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Sync the serving host to the selection: pull selected, delete the rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := catalog.Resolve(firstNonEmpty(flagSelection, a.cfg.SelectionFile), a.cfg.SelectionFile)
			plan, err := syncer.Sync(ctx, a.client(), path, a.log)
			if err != nil {
				if syncer.IsPartial(err) {
					a.log.Warn().Err(err).Msg("sync finished with failures")
				}
				return err
			}
			a.log.Info().Int("pulled", len(plan.Pull)).Int("deleted", len(plan.Delete)).Msg("sync complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagSelection, "config-file", "f", "", "selection file (default selected_tags.conf)")
	return cmd
}
