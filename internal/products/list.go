package product

import "github.com/merchshop/storefront-backend/internal/cart"

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Category string `json:"category,omitempty"`
	Query    string `json:"q,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
}

// ListResult is one page of the catalog.
type ListResult struct {
	Products   []cart.Product `json:"products"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
