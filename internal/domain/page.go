package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortOrder names a sortable field by its API name, e.g. "dueDate".
type SortOrder struct {
	Field     string
	Direction SortDirection
}

// PageRequest is a zero-based page request.
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

// Normalize clamps the page and size into their valid ranges.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Content       []T
	Page          int
	Size          int
	TotalElements int64
}

func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}
