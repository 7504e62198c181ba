package feed

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexNumber accepts a JSON number, a numeric string such as "$4,500", or
// null. Anything unparseable decodes as 0.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' || data[0] == 't' || data[0] == 'f' {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(f)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNumber(f)
	return nil
}

func (n flexNumber) Int() int {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func (n flexNumber) Float() float64 { return float64(n) }

// flexString accepts a string or a number; identifiers arrive as either.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || data[0] == 'n':
		*s = ""
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
	default:
		*s = flexString(data)
	}
	return nil
}

// flexStrings accepts an array of strings, a single comma-separated string,
// or null. Empty entries are dropped.
type flexStrings []string

func (ss *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' {
		*ss = nil
		return nil
	}
	var parts []string
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		parts = strings.Split(v, ",")
	} else {
		var items []flexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, it := range items {
			parts = append(parts, string(it))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*ss = out
	return nil
}
