package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show one project in detail",
	Example: `  artvault show 3b1e...
  artvault show 3b1e... --extract ./out`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showExtractDir string

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showExtractDir, "extract", "",
		"Write the stored images into this directory")
}

func runShow(cmd *cobra.Command, args []string) error {
	project, err := apiClient.Library.GetProject(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(project)
	} else {
		printInfo("Title:       %s", project.Title)
		printInfo("Style:       %s", project.Style.Name)
		printInfo("Created:     %s", project.Metadata.CreatedAt.Local().Format("2006-01-02 15:04"))
		printInfo("Favorited:   %v", project.Metadata.Favorited)
		printInfo("Original:    %s (%d bytes)", project.OriginalImage.Filename, project.OriginalImage.Size)
		printInfo("Transformed: %s (%d bytes)", project.TransformedImage.Filename, project.TransformedImage.Size)
		if len(project.Metadata.Tags) > 0 {
			printInfo("Tags:        %s", strings.Join(project.Metadata.Tags, ", "))
		}
	}

	if showExtractDir == "" {
		return nil
	}

	if err := os.MkdirAll(showExtractDir, 0755); err != nil {
		return fmt.Errorf("create extract directory: %w", err)
	}

	files := map[string][]byte{
		project.OriginalImage.Filename:    project.OriginalImage.Data,
		project.TransformedImage.Filename: project.TransformedImage.Data,
		"thumbnail.jpg":                   project.Thumbnail,
	}
	for name, data := range files {
		path := filepath.Join(showExtractDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	printSuccess("Extracted %d files to %s", len(files), showExtractDir)
	return nil
}
