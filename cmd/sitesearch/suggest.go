package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
)

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest <input>",
	Short: "Print autocomplete suggestions",
	Long: `Print the city suggestions the autocomplete widget would show for input.

Input shorter than the configured minimum length yields no suggestions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}

		limit := suggestLimit
		if limit <= 0 {
			limit = cfg.Autocomplete.MaxSuggestions
		}
		term := textmatch.Normalize(args[0])
		suggestions := []ranker.CityResult{}
		if textmatch.Len(term) >= cfg.Autocomplete.MinInputLength {
			suggestions = engine.New(engine.TextScored).Suggest(snap, term, limit)
		}

		if outputJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(suggestions)
		}
		if len(suggestions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), styles.Dim.Render("no suggestions"))
			return nil
		}
		renderSuggestions(cmd.OutOrStdout(), suggestions)
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 0, "maximum suggestions (config default when 0)")
}
