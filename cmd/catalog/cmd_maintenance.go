package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/internal/app"
)

// catalog orphans:sweep [--dry-run]
var orphansSweepCmd = &cobra.Command{
	Use:   "orphans:sweep",
	Short: "Delete images and favourites whose product no longer exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		return withDB(cmd.Context(), func(db *app.Database) error {
			report, err := services.NewMaintenanceService(db.Stores()).SweepOrphans(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "Removed"
			if report.DryRun {
				verb = "Would remove"
			}
			fmt.Fprintf(out, "Orphaned products: %d\n", len(report.OrphanProductIDs))
			for _, id := range report.OrphanProductIDs {
				fmt.Fprintf(out, "  - %s\n", id)
			}
			fmt.Fprintf(out, "Orphaned users: %d\n", len(report.OrphanUserIDs))
			for _, id := range report.OrphanUserIDs {
				fmt.Fprintf(out, "  - %s\n", id)
			}
			fmt.Fprintf(out, "%s %d images and %d favourites\n", verb, report.ImagesRemoved, report.FavouritesRemoved)
			return nil
		})
	},
}

func init() {
	orphansSweepCmd.Flags().Bool("dry-run", false, "report orphans without deleting them")
}
