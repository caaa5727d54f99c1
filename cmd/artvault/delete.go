package main

import (
	"context"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <project-id>",
	Short: "Toggle a project's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavorite,
}

func init() {
	rootCmd.AddCommand(deleteCmd, favoriteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := apiClient.Library.DeleteProject(context.Background(), args[0]); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": args[0]})
	} else {
		printSuccess("Project %s deleted", args[0])
	}
	return nil
}

func runFavorite(cmd *cobra.Command, args []string) error {
	favorited, err := apiClient.Library.ToggleFavorite(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"id": args[0], "favorited": favorited})
		return nil
	}

	if favorited {
		printSuccess("Project %s favorited", args[0])
	} else {
		printSuccess("Project %s unfavorited", args[0])
	}
	return nil
}
