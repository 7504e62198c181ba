// Package paginate slices ranked results into fixed-size pages.
package paginate

// DefaultPageSize applies when a caller passes a non-positive size.
const DefaultPageSize = 50

// Page is one window over a ranked list.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Pages int
}

// Slice returns the 1-indexed page of items. A page past the end yields an
// empty Items slice, not an error. Page numbers below 1 are the caller's
// concern and are passed through unchanged in the result.
func Slice[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	p := Page[T]{
		Items: []T{},
		Total: total,
		Page:  page,
		Pages: Pages(total, pageSize),
	}
	if page < 1 {
		return p
	}
	start := (page - 1) * pageSize
	if start >= total {
		return p
	}
	end := min(start+pageSize, total)
	p.Items = items[start:end]
	return p
}

// Pages is ceil(total/pageSize), zero when there is nothing to show.
func Pages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
