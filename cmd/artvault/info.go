package main

import (
	"context"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show storage usage and key status",
	RunE:  runInfo,
}

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Evict old non-favorited projects to free storage",
	Example: "  artvault cleanup --free-mb 100",
	RunE:    runCleanup,
}

var cleanupFreeMB int64

func init() {
	rootCmd.AddCommand(infoCmd, cleanupCmd)

	cleanupCmd.Flags().Int64Var(&cleanupFreeMB, "free-mb", 50,
		"Megabytes that must be available after cleanup")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	info, err := apiClient.Library.GetStorageInfo(ctx)
	if err != nil {
		return err
	}

	keyStatus, err := apiClient.Keys.GetStatus(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"storage": info,
			"key":     keyStatus,
		})
		return nil
	}

	printInfo("Storage")
	printInfo("  Projects:  %d", info.ProjectCount)
	printInfo("  Used:      %s (%d%%)", info.Used, info.Percentage)
	printInfo("  Available: %s", info.Available)

	if keyStatus.HasKey {
		printInfo("API key:     stored (%s tier)", keyStatus.Tier)
	} else {
		printInfo("API key:     not set")
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	target := cleanupFreeMB * 1024 * 1024

	removed, err := apiClient.Library.CleanupStorage(context.Background(), target)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"removed": removed})
		return nil
	}

	if removed == 0 {
		printInfo("Nothing to clean up")
	} else {
		printSuccess("Removed %d projects", removed)
	}
	return nil
}
