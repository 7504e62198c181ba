package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/ranker"
)

const testFeed = "../../internal/directory/feed/testdata/search-index.json"

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	cfgFile, feedURI, fallbackURI, logLevel, outputJSON = "", "", "", "warn", false
	queryFlags.state, queryFlags.careType, queryFlags.cost = "", "", ""
	queryFlags.amenities, queryFlags.rating, queryFlags.mode = nil, "", ""
	queryFlags.lat, queryFlags.lng, queryFlags.distance = "", "", ""
	queryFlags.page, queryFlags.limit = 1, 0
	suggestLimit, exportOutput = 0, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--feed", testFeed}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.Bytes()
}

func TestQueryJSON(t *testing.T) {
	var resp engine.Response
	require.NoError(t, json.Unmarshal(run(t, "query", "austin", "--json"), &resp))

	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, ranker.KindCity, resp.Results[0].Type)
	assert.Equal(t, "Austin", resp.Results[0].Name())
	assert.Equal(t, "Sunrise of Austin", resp.Results[1].Name())
}

func TestQueryFacilityFilter(t *testing.T) {
	var resp engine.Response
	require.NoError(t, json.Unmarshal(run(t, "query", "--type", "memory-care", "--json"), &resp))

	require.Equal(t, 1, resp.Total)
	assert.Equal(t, ranker.KindFacility, resp.Results[0].Type)
}

func TestQueryTable(t *testing.T) {
	out := run(t, "query", "austin")
	assert.Contains(t, string(out), "2 results")
	assert.Contains(t, string(out), "Sunrise of Austin")
}

func TestSuggest(t *testing.T) {
	var got []ranker.CityResult
	require.NoError(t, json.Unmarshal(run(t, "suggest", "bo", "--json"), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "boise-id", got[0].Slug)

	require.NoError(t, json.Unmarshal(run(t, "suggest", "b", "--json"), &got))
	assert.Empty(t, got)
}

func TestExportIndex(t *testing.T) {
	var index []IndexEntry
	require.NoError(t, json.Unmarshal(run(t, "export-index"), &index))

	assert.Equal(t, []IndexEntry{
		{Slug: "austin-tx", Name: "Austin", State: "Texas", URL: "/city/austin-tx/", Population: 961855},
		{Slug: "boise-id", Name: "Boise", State: "Idaho", URL: "/city/boise-id/", Population: 235684},
	}, index)
}

func TestExportIndexToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "data", "city-index.json")
	run(t, "export-index", "-o", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var index []IndexEntry
	require.NoError(t, json.Unmarshal(data, &index))
	assert.Len(t, index, 2)
}
