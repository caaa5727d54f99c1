package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/artvault/internal/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved projects",
	Example: `  artvault list
  artvault list --style Renaissance --limit 10
  artvault list --favorites
  artvault list --search sunset`,
	RunE: runList,
}

var (
	listStyle     string
	listSearch    string
	listFavorites bool
	listLimit     int
	listOffset    int
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStyle, "style", "",
		"Filter by exact style name")
	listCmd.Flags().StringVar(&listSearch, "search", "",
		"Filter by substring of title or filename")
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false,
		"Only favorited projects")
	listCmd.Flags().IntVar(&listLimit, "limit", 0,
		"Maximum projects to list")
	listCmd.Flags().IntVar(&listOffset, "offset", 0,
		"Projects to skip")
}

func runList(cmd *cobra.Command, args []string) error {
	filter := models.ProjectFilter{
		Style:  listStyle,
		Search: listSearch,
	}
	if listFavorites {
		favorited := true
		filter.Favorited = &favorited
	}

	result, err := apiClient.Library.SearchProjects(context.Background(), filter, listLimit, listOffset)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	if result.TotalCount == 0 {
		printInfo("No projects found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTYLE\tCREATED\tFAV")
	for _, p := range result.Projects {
		fav := ""
		if p.Metadata.Favorited {
			fav = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Title, p.Style.Name,
			p.Metadata.CreatedAt.Local().Format("2006-01-02 15:04"), fav)
	}
	w.Flush()

	shown := listOffset + len(result.Projects)
	if result.HasMore {
		printInfo("Showing %d of %d projects", shown, result.TotalCount)
	}
	return nil
}
