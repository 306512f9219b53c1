package core

import "strings"

// SortKey is a whitelisted list ordering. A leading "-" means descending.
type SortKey string

const (
	SortDateAsc      SortKey = "date"
	SortDateDesc     SortKey = "-date"
	SortTypeAsc      SortKey = "type"
	SortTypeDesc     SortKey = "-type"
	SortCategoryAsc  SortKey = "category"
	SortCategoryDesc SortKey = "-category"
	SortAmountAsc    SortKey = "amount"
	SortAmountDesc   SortKey = "-amount"

	// DefaultSort lists newest transactions first.
	DefaultSort = SortDateDesc
)

var allowedSorts = map[SortKey]struct{}{
	SortDateAsc:      {},
	SortDateDesc:     {},
	SortTypeAsc:      {},
	SortTypeDesc:     {},
	SortCategoryAsc:  {},
	SortCategoryDesc: {},
	SortAmountAsc:    {},
	SortAmountDesc:   {},
}

// NormalizeSort maps untrusted input onto the whitelist. Unknown values
// fall back to DefaultSort.
func NormalizeSort(s string) SortKey {
	k := SortKey(s)
	if _, ok := allowedSorts[k]; ok {
		return k
	}
	return DefaultSort
}

// Field returns the sort field without the direction prefix.
func (k SortKey) Field() string {
	return strings.TrimPrefix(string(k), "-")
}

// Descending reports whether the key sorts in descending order.
func (k SortKey) Descending() bool {
	return strings.HasPrefix(string(k), "-")
}
