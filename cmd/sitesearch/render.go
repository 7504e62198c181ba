package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/ranker"
)

type theme struct {
	Title lipgloss.Style
	Kind  lipgloss.Style
	Name  lipgloss.Style
	Dim   lipgloss.Style
	Stars lipgloss.Style
}

var styles = theme{
	Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
	Kind:  lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("#58a6ff")),
	Name:  lipgloss.NewStyle().Width(36).Bold(true),
	Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	Stars: lipgloss.NewStyle().Foreground(lipgloss.Color("#e3b341")),
}

func renderResults(w io.Writer, term string, resp engine.Response) {
	title := fmt.Sprintf("%d results", resp.Total)
	if term != "" {
		title = fmt.Sprintf("%d results for %q", resp.Total, term)
	}
	fmt.Fprintln(w, styles.Title.Render(title))
	if resp.Pages > 0 {
		fmt.Fprintln(w, styles.Dim.Render(fmt.Sprintf("page %d of %d", resp.Page, resp.Pages)))
	}
	fmt.Fprintln(w)

	for _, r := range resp.Results {
		fmt.Fprintln(w, resultLine(r))
	}
}

func resultLine(r ranker.Result) string {
	kind := styles.Kind.Render(string(r.Type))
	switch {
	case r.City != nil:
		c := r.City
		name := styles.Name.Render(fmt.Sprintf("%s, %s", c.Name, c.StateAbbr))
		return kind + name + styles.Dim.Render(fmt.Sprintf("pop %d  %d facilities  %s", c.Population, c.FacilityCount, c.URL))
	case r.Facility != nil:
		f := r.Facility
		name := styles.Name.Render(f.Name)
		stars := styles.Stars.Render(strings.Repeat("★", f.Stars) + strings.Repeat("☆", 5-f.Stars))
		detail := fmt.Sprintf("  %s, %s", f.City, f.State)
		if f.MonthlyAvg > 0 {
			detail += fmt.Sprintf("  $%d/mo", f.MonthlyAvg)
		}
		return kind + name + stars + styles.Dim.Render(detail)
	}
	return kind
}

func renderSuggestions(w io.Writer, suggestions []ranker.CityResult) {
	for i, s := range suggestions {
		fmt.Fprintf(w, "%s %s %s\n",
			styles.Dim.Render(fmt.Sprintf("%2d.", i+1)),
			styles.Name.Render(fmt.Sprintf("%s, %s", s.Name, s.StateAbbr)),
			styles.Dim.Render(s.URL),
		)
	}
}
