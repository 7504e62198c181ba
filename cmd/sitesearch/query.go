package main

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/query"
)

var queryFlags struct {
	state     string
	careType  string
	cost      string
	amenities []string
	rating    string
	lat       string
	lng       string
	distance  string
	page      int
	limit     int
	mode      string
}

var queryCmd = &cobra.Command{
	Use:   "query [term]",
	Short: "Run a filtered search",
	Long: `Run a search over the directory and print one page of results.

Filters use the same lenient parsing as the HTTP API: an unparseable value
is reported on stderr and ignored.

Example:
  sitesearch query austin --type memory-care --rating 4
  sitesearch query --lat 30.27 --lng -97.74 --distance 25 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}

		mode := cfg.Search.TextMatch
		if queryFlags.mode != "" {
			mode = queryFlags.mode
		}
		textMode, err := engine.ParseTextMode(mode)
		if err != nil {
			return err
		}

		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		q, problems := query.Parse(queryValues(term), query.Limits{
			DefaultPageSize: cfg.Search.DefaultLimit,
			MaxPageSize:     cfg.Search.MaxLimit,
			DefaultRadius:   cfg.Search.DefaultRadius,
		})
		for _, p := range problems {
			slog.Warn("ignoring filter", "error", p)
		}

		resp := engine.New(textMode).Search(cmd.Context(), snap, q)
		if outputJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		renderResults(cmd.OutOrStdout(), q.Term, resp)
		return nil
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFlags.state, "state", "", "two-letter state code")
	f.StringVar(&queryFlags.careType, "type", "", "care type, e.g. memory-care")
	f.StringVar(&queryFlags.cost, "cost", "", "monthly cost bracket: under-3000, 3000-4000, 4000-5000, 5000-6000, over-6000")
	f.StringSliceVar(&queryFlags.amenities, "amenities", nil, "required amenities (comma separated)")
	f.StringVar(&queryFlags.rating, "rating", "", "minimum rating")
	f.StringVar(&queryFlags.lat, "lat", "", "latitude of the search origin")
	f.StringVar(&queryFlags.lng, "lng", "", "longitude of the search origin")
	f.StringVar(&queryFlags.distance, "distance", "", "radius in miles")
	f.IntVar(&queryFlags.page, "page", 1, "page number")
	f.IntVar(&queryFlags.limit, "limit", 0, "page size (config default when 0)")
	f.StringVar(&queryFlags.mode, "mode", "", "free-text mode: substring or scored")
}

// queryValues renders the flags as the request parameters query.Parse reads.
func queryValues(term string) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("q", term)
	set("state", queryFlags.state)
	set("type", queryFlags.careType)
	set("cost", queryFlags.cost)
	set("rating", queryFlags.rating)
	set("lat", queryFlags.lat)
	set("lng", queryFlags.lng)
	set("distance", queryFlags.distance)
	for _, a := range queryFlags.amenities {
		v.Add("amenities", a)
	}
	if queryFlags.page != 1 {
		v.Set("page", strconv.Itoa(queryFlags.page))
	}
	if queryFlags.limit > 0 {
		v.Set("limit", strconv.Itoa(queryFlags.limit))
	}
	return v
}
