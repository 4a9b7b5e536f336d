package models

import "time"

// News category constants
const (
	NewsCategoryCompany  = "company"
	NewsCategoryIndustry = "industry"
)

// NewsItem is a stored article, unique per (company, link)
type NewsItem struct {
	ID          int       `json:"id"`
	CompanyID   int       `json:"company_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}
