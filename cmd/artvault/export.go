package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every project to a portable JSON backup",
	Example: `  artvault export
  artvault export --output backup.json`,
	RunE: runExport,
}

var exportOutput string

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output file (defaults to a dated filename in the working directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	doc, suggested, err := apiClient.Library.ExportProjects(context.Background())
	if err != nil {
		return err
	}

	path := exportOutput
	if path == "" {
		path = suggested
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"file":     path,
			"projects": len(doc.Projects),
			"bytes":    len(data),
		})
	} else {
		printSuccess("Exported %d projects to %s", len(doc.Projects), path)
	}
	return nil
}
