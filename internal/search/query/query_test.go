package query

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/seniorliving/directory-search/pkg/errors"
)

func TestBracketContains(t *testing.T) {
	tests := []struct {
		bracket CostBracket
		cost    int
		want    bool
	}{
		{CostUnder3000, 2999, true},
		{CostUnder3000, 3000, false},
		{Cost3000To4000, 3000, true},
		{Cost3000To4000, 2999, false},
		{Cost3000To4000, 4000, true},
		{Cost4000To5000, 4000, true},
		{Cost4000To5000, 5000, true},
		{Cost5000To6000, 5000, true},
		{Cost5000To6000, 6000, true},
		{CostOver6000, 6000, true},
		{CostOver6000, 5999, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.bracket.Contains(tt.cost), "%s contains %d", tt.bracket, tt.cost)
	}
}

func TestParseFull(t *testing.T) {
	v := url.Values{
		"q":         {"  Austin "},
		"state":     {"tx"},
		"type":      {"Memory Care"},
		"cost":      {"4000-5000"},
		"amenities": {"Pool,WiFi", "Garden"},
		"rating":    {"4"},
		"lat":       {"30.27"},
		"lng":       {"-97.74"},
		"distance":  {"10"},
		"page":      {"2"},
		"limit":     {"20"},
	}
	q, problems := Parse(v, Limits{DefaultPageSize: 50, MaxPageSize: 100})
	require.Empty(t, problems)

	assert.Equal(t, "austin", q.Term)
	assert.Equal(t, "TX", q.Filters.State)
	assert.Equal(t, "memory-care", q.Filters.CareType)
	assert.Equal(t, Cost4000To5000, q.Filters.CostBracket)
	assert.Equal(t, []string{"pool", "wifi", "garden"}, q.Filters.Amenities)
	require.NotNil(t, q.Filters.RatingFloor)
	assert.Equal(t, 4, *q.Filters.RatingFloor)
	require.NotNil(t, q.Filters.Geo)
	assert.Equal(t, 10.0, q.Filters.Geo.RadiusMiles)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 20, q.PageSize)
}

func TestParseIsLenient(t *testing.T) {
	v := url.Values{
		"rating": {"four"},
		"page":   {"abc"},
		"limit":  {"-5"},
		"cost":   {"cheap"},
		"lat":    {"north"},
		"lng":    {"-97"},
	}
	q, problems := Parse(v, Limits{})

	assert.Len(t, problems, 5)
	for _, p := range problems {
		assert.True(t, errors.Is(p, apperrors.ErrInvalidFilterValue))
	}
	assert.Nil(t, q.Filters.RatingFloor)
	assert.Nil(t, q.Filters.Geo)
	assert.Equal(t, CostBracket(""), q.Filters.CostBracket)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
}

func TestParseClampsPaging(t *testing.T) {
	q, _ := Parse(url.Values{"page": {"0"}, "limit": {"5000"}}, Limits{DefaultPageSize: 50, MaxPageSize: 200})
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 200, q.PageSize)

	q, _ = Parse(url.Values{"lat": {"30"}, "lng": {"-97"}}, Limits{})
	require.NotNil(t, q.Filters.Geo)
	assert.Equal(t, DefaultRadiusMiles, q.Filters.Geo.RadiusMiles)
}

func TestCacheKeyIsCanonical(t *testing.T) {
	a, _ := Parse(url.Values{"q": {"Reno"}, "amenities": {"pool,garden"}}, Limits{})
	b, _ := Parse(url.Values{"amenities": {"garden", "pool"}, "q": {" reno"}}, Limits{})
	c, _ := Parse(url.Values{"q": {"reno"}, "page": {"2"}}, Limits{})

	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
}
