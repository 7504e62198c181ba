package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seniorliving/directory-search/internal/directory"
)

// IndexEntry is one city in the static autocomplete index.
type IndexEntry struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	State      string `json:"state"`
	URL        string `json:"url"`
	Population int    `json:"population"`
}

var exportOutput string

var exportIndexCmd = &cobra.Command{
	Use:   "export-index",
	Short: "Write the city index for static autocomplete",
	Long: `Write every city in the feed as a JSON array of
{slug, name, state, url, population}, in feed order.

Example:
  sitesearch export-index --feed data/combined_data.json -o public/data/city-index.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		index := cityIndex(snap)

		if exportOutput == "" || exportOutput == "-" {
			return writeIndex(cmd.OutOrStdout(), index)
		}
		if dir := filepath.Dir(exportOutput); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOutput, err)
		}
		if err := writeIndex(f, index); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("city index written", "path", exportOutput, "cities", len(index))
		return nil
	},
}

func init() {
	exportIndexCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (stdout when empty)")
}

func cityIndex(snap *directory.Snapshot) []IndexEntry {
	cities := snap.Cities()
	index := make([]IndexEntry, len(cities))
	for i, c := range cities {
		index[i] = IndexEntry{
			Slug:       c.Slug,
			Name:       c.Name,
			State:      c.State,
			URL:        c.URL,
			Population: c.Population,
		}
	}
	return index
}

func writeIndex(w io.Writer, index []IndexEntry) error {
	if err := json.NewEncoder(w).Encode(index); err != nil {
		return fmt.Errorf("encoding city index: %w", err)
	}
	return nil
}
