package models

// PageData holds the content extracted from a single web page.
type PageData struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Success     bool   `json:"success"`
}

// CompanyData is everything the fetcher gathered about one company website.
type CompanyData struct {
	URL      string   `json:"url"`
	Homepage PageData `json:"homepage"`
	About    PageData `json:"about"`
}

// HasAbout reports whether a secondary about page was fetched.
func (c *CompanyData) HasAbout() bool {
	return c != nil && c.About.Success && c.About.Content != ""
}
