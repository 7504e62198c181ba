package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/pkg/tracing"
)

func fixture() *directory.Snapshot {
	cities := []directory.City{
		{Name: "Austin", State: "Texas", Slug: "austin-tx", Population: 961855},
		{Name: "Austintown", State: "Ohio", Slug: "austintown-oh", Population: 29000},
		{Name: "Round Rock", State: "Texas", Slug: "round-rock-tx", Population: 120000},
		{Name: "Phoenix", State: "Arizona", Slug: "phoenix-az", Population: 1608139},
	}
	facilities := []directory.Facility{
		{ID: "f1", Name: "Sunrise of Austin", State: "TX", CitySlug: "austin-tx", Rating: 4.5},
		{ID: "f2", Name: "Austin Oaks", State: "Texas", CitySlug: "austin-tx", Rating: 3.9},
		{ID: "f3", Name: "Desert Bloom", State: "AZ", CitySlug: "phoenix-az", Rating: 4.8},
	}
	return directory.NewSnapshot(cities, facilities, directory.Meta{Source: "fixture"})
}

func names(rs []ranker.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name()
	}
	return out
}

func TestSearchWithTerm(t *testing.T) {
	e := New(TextScored)
	resp := e.Search(context.Background(), fixture(), query.New("Austin"))

	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 1, resp.Pages)
	assert.Equal(t, query.DefaultPageSize, resp.Limit)
	assert.Equal(t, []string{"Austin", "Austintown", "Austin Oaks", "Sunrise of Austin"}, names(resp.Results))
}

func TestSearchWithoutTerm(t *testing.T) {
	resp := New(TextScored).Search(context.Background(), fixture(), query.New(""))
	assert.Equal(t, []string{
		"Phoenix", "Austin", "Round Rock", "Austintown",
		"Desert Bloom", "Sunrise of Austin", "Austin Oaks",
	}, names(resp.Results))
}

func TestSearchTextModes(t *testing.T) {
	q := query.New("Phonix")

	scored := New(TextScored).Search(context.Background(), fixture(), q)
	assert.Equal(t, []string{"Phoenix"}, names(scored.Results))

	substring := New(TextSubstring).Search(context.Background(), fixture(), q)
	assert.Equal(t, 0, substring.Total)
	assert.NotNil(t, substring.Results)
}

func TestDefaultModeMatchesFacilitiesByName(t *testing.T) {
	e := New("")
	require.Equal(t, TextSubstring, e.Mode())

	resp := e.Search(context.Background(), fixture(), query.New("Texas"))
	assert.Equal(t, []string{"Austin", "Round Rock"}, names(resp.Results))

	resp = e.Search(context.Background(), fixture(), query.New("Phonix"))
	assert.Equal(t, 0, resp.Total)

	resp = e.Search(context.Background(), fixture(), query.New("austin"))
	assert.Equal(t, []string{"Austin", "Austintown", "Austin Oaks", "Sunrise of Austin"}, names(resp.Results))

	scored := New(TextScored).Search(context.Background(), fixture(), query.New("Texas"))
	assert.Equal(t, 4, scored.Total)
}

func TestSearchFiltersAndPaging(t *testing.T) {
	e := New(TextScored)
	q := query.New("austin")
	q.Filters.State = "TX"
	q.PageSize = 2
	q.Page = 2

	resp := e.Search(context.Background(), fixture(), q)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, []string{"Sunrise of Austin"}, names(resp.Results))

	q.Page = 5
	resp = e.Search(context.Background(), fixture(), q)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 3, resp.Total)
}

func TestSearchIsIdempotent(t *testing.T) {
	e := New(TextScored)
	snap := fixture()
	q := query.New("a")

	first, err := json.Marshal(e.Search(context.Background(), snap, q))
	require.NoError(t, err)
	second, err := json.Marshal(e.Search(context.Background(), snap, q))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSearchNilSnapshot(t *testing.T) {
	resp := New(TextScored).Search(context.Background(), nil, query.New("austin"))
	assert.Equal(t, 0, resp.Total)
	assert.Equal(t, 0, resp.Pages)
	assert.NotNil(t, resp.Results)
}

func TestSearchRecordsSpans(t *testing.T) {
	ctx, root := tracing.StartSpan(context.Background(), "search", "trace-1")
	New(TextScored).Search(ctx, fixture(), query.New("austin"))
	root.End()

	var spans []string
	for _, c := range root.Children {
		spans = append(spans, c.Name)
	}
	assert.Equal(t, []string{"search.filter", "search.score", "search.rank", "search.paginate"}, spans)
}

func TestSuggest(t *testing.T) {
	e := New(TextScored)
	snap := fixture()

	got := e.Suggest(snap, "AUS", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "austin-tx", got[0].Slug)
	assert.Equal(t, "austintown-oh", got[1].Slug)

	assert.Len(t, e.Suggest(snap, "aus", 1), 1)
	assert.Empty(t, e.Suggest(snap, "  ", 10))
	assert.Empty(t, e.Suggest(nil, "austin", 10))
}

func TestParseTextMode(t *testing.T) {
	m, err := ParseTextMode("")
	require.NoError(t, err)
	assert.Equal(t, TextSubstring, m)

	m, err = ParseTextMode("scored")
	require.NoError(t, err)
	assert.Equal(t, TextScored, m)

	_, err = ParseTextMode("regex")
	assert.Error(t, err)
}
