package dto

// MediaFilters narrows a gallery query.
type MediaFilters struct {
	Pipeline string
	Limit    int
	Offset   int
}

// IsEmpty reports whether no filter criteria are set.
func (f *MediaFilters) IsEmpty() bool {
	return f.Pipeline == ""
}
