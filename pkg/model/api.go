package model

// Page is the paginated envelope returned by the list endpoints.
type Page[T any] struct {
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Sort    string `json:"sort,omitempty"`
	Desc    bool   `json:"desc,omitempty"`
}

// HasMore reports whether further pages exist after this one.
func (p Page[T]) HasMore() bool {
	return p.Page*p.PerPage < p.Total
}

// ListOptions configures list queries with pagination and sorting.
type ListOptions struct {
	Page    int
	PerPage int
	Sort    string // Optional column name
	Desc    bool
}

// DefaultListOptions returns the backend's defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 1, PerPage: 25}
}

// Clamp enforces limits (page >= 1, 1 <= per_page <= 100).
func (o *ListOptions) Clamp() {
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.PerPage <= 0 {
		o.PerPage = 25
	}
	if o.PerPage > 100 {
		o.PerPage = 100
	}
}

// Token is the response of the login and verification endpoints.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}
