package types

// PagedResponse is a single page of a paginated backend response.
type PagedResponse[T any] struct {
	// Count is the total number of results across all pages
	Count int64 `json:"count"`

	// Next is the URL of the next page, if any
	Next *string `json:"next"`

	// Previous is the URL of the previous page, if any
	Previous *string `json:"previous"`

	// NumPages is the total number of pages
	NumPages int `json:"num_pages"`

	// Results holds the page's records
	Results []T `json:"results"`
}

// HasNext reports whether the backend announced another page.
func (p *PagedResponse[T]) HasNext() bool {
	return p != nil && p.Next != nil && *p.Next != ""
}

// ItemPage is the page type returned by the query endpoint.
type ItemPage = PagedResponse[Item]
