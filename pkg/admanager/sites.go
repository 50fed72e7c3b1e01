package admanager

// Site is a child site delegated to the parent network. Beyond the stable
// identity field the pipeline only needs the display fields below.
type Site struct {
	ID               int64  `json:"id"`
	URL              string `json:"url"`
	ChildNetworkCode string `json:"childNetworkCode"`
	ApprovalStatus   string `json:"approvalStatus"`
	Active           bool   `json:"active"`
}

// SitePage is one page of a getSitesByStatement result.
type SitePage struct {
	Results            []Site `json:"results"`
	StartIndex         int    `json:"startIndex"`
	TotalResultSetSize int    `json:"totalResultSetSize"`
}

// statementRequest is the wire form of a filter statement.
type statementRequest struct {
	Query  string         `json:"query"`
	Values map[string]any `json:"values,omitempty"`
}
