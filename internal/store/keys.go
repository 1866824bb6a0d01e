package store

// SortKey selects the ordering of a book listing. The set is closed;
// anything else is rejected before reaching SQL.
type SortKey string

const (
	SortNone      SortKey = ""
	SortTitle     SortKey = "title"
	SortAddedDate SortKey = "added_date"
	SortYear      SortKey = "year"
	SortSize      SortKey = "size"
)

// ParseSortKey validates a raw sort key.
func ParseSortKey(raw string) (SortKey, error) {
	switch k := SortKey(raw); k {
	case SortNone, SortTitle, SortAddedDate, SortYear, SortSize:
		return k, nil
	default:
		return SortNone, ErrInvalidInput.WithMessagef("unknown sort key %q", raw)
	}
}

// FilterKey selects the predicate of a book listing.
type FilterKey string

const (
	FilterNone      FilterKey = ""
	FilterPublisher FilterKey = "publisher"
	FilterExt       FilterKey = "ext"
	FilterYear      FilterKey = "year"
	FilterTag       FilterKey = "tag"
	FilterActive    FilterKey = "active"
	FilterConfirmed FilterKey = "confirmed"
	FilterAuthor    FilterKey = "author"
)

// ParseFilterKey validates a raw filter key.
func ParseFilterKey(raw string) (FilterKey, error) {
	switch k := FilterKey(raw); k {
	case FilterNone, FilterPublisher, FilterExt, FilterYear, FilterTag,
		FilterActive, FilterConfirmed, FilterAuthor:
		return k, nil
	default:
		return FilterNone, ErrInvalidInput.WithMessagef("unknown filter key %q", raw)
	}
}
