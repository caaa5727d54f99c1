package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/artvault/internal/models"
)

var saveCmd = &cobra.Command{
	Use:   "save <original> <transformed>",
	Short: "Save a project from an original and its transformed image",
	Long: `Save compresses both images, generates a thumbnail and stores the
project under the storage quota. When the quota would overflow and
auto-cleanup is enabled, the oldest non-favorited projects are evicted.`,
	Example: `  artvault save photo.jpg photo-styled.jpg --style "Renaissance"
  artvault save photo.jpg out.png --style Cubist --title "Evening walk" --tag outdoor --tag 2026`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

var (
	saveStyle  string
	saveTitle  string
	saveTags   []string
	saveTimeMS int64
)

func init() {
	rootCmd.AddCommand(saveCmd)

	saveCmd.Flags().StringVarP(&saveStyle, "style", "s", "",
		"Style name applied to the transformation (required)")
	saveCmd.Flags().StringVarP(&saveTitle, "title", "t", "",
		"Project title (generated from filename and style if omitted)")
	saveCmd.Flags().StringArrayVar(&saveTags, "tag", nil,
		"Tag to attach (repeatable)")
	saveCmd.Flags().Int64Var(&saveTimeMS, "time-ms", 0,
		"Transformation duration in milliseconds")

	_ = saveCmd.MarkFlagRequired("style")
}

func runSave(cmd *cobra.Command, args []string) error {
	originalPath, transformedPath := args[0], args[1]

	original, err := os.ReadFile(originalPath)
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}
	transformed, err := os.ReadFile(transformedPath)
	if err != nil {
		return fmt.Errorf("read transformed: %w", err)
	}

	req := &models.SaveProjectRequest{
		Title: saveTitle,
		OriginalImage: models.ImageAsset{
			Data:     original,
			Filename: filepath.Base(originalPath),
		},
		TransformedImage:   transformed,
		Style:              models.StyleInfo{Name: saveStyle},
		TransformationTime: saveTimeMS,
		Tags:               saveTags,
	}

	project, err := apiClient.Library.SaveProject(context.Background(), req)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{"success": false, "error": err.Error()})
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"id":      project.ID,
			"title":   project.Title,
			"size":    project.EstimatedSize(),
		})
		return nil
	}

	printSuccess("Saved %q (%s)", project.Title, project.ID)
	return nil
}
