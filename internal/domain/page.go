package domain

import "time"

// TransactionFilter is the predicate record consumed by the query layer.
// UserID is mandatory; zero values of the other fields are ignored.
type TransactionFilter struct {
	UserID     string
	Type       TransactionType
	Category   string
	Start      *time.Time
	End        *time.Time
	Fraudulent *bool
}

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultSortBy   = "transactionDate"
)

// SortFields lists the transaction fields a page may be sorted by.
var SortFields = []string{
	"id", "amount", "type", "category", "description", "location",
	"transactionDate", "fraudulent", "fraudScore", "createdAt",
}

// ValidSortField reports whether field is one of SortFields.
func ValidSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// PageRequest selects one zero-based page of a sorted result.
type PageRequest struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// Page is one slice of a paginated result.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}
