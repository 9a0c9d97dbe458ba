package listing

const (
	// DefaultPerPage is the page size used when none is requested.
	DefaultPerPage = 20
	// MaxPerPage caps the page size.
	MaxPerPage = 100
)

// PageParams carries pagination parameters parsed from a request.
type PageParams struct {
	Page    int // 1-indexed page number
	PerPage int // rows per page
}

// Normalize applies defaults and bounds.
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the row offset of the requested page.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageInfo carries pagination metadata for a result.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPageInfo computes pagination metadata. TotalPages is at least 1.
func NewPageInfo(params PageParams, total int) PageInfo {
	params = params.Normalize()
	totalPages := (total + params.PerPage - 1) / params.PerPage
	if totalPages < 1 {
		totalPages = 1
	}
	return PageInfo{
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
