package domain

import "time"

// Posting is one catalog record. (Source, SourceID) and Fingerprint are both
// unique across the catalog.
type Posting struct {
	ID       int64
	Source   string // lowercase platform name: seek/indeed/etc.
	SourceID string

	Title        string
	Company      string
	Description  string
	Requirements *string

	State  *string
	Suburb *string

	Trade          *string
	EmploymentType *string

	PayMin *float64
	PayMax *float64

	Tags   []string // nil when absent
	JobURL *string

	PostedAt      *time.Time
	ScrapedAt     time.Time
	LastCheckedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Fingerprint string
	ContentHash string

	IsActive bool
}

// RawRecord is a listing as the scrape API returns it. It is never stored.
type RawRecord struct {
	Source         string    `json:"source"`
	SourceID       string    `json:"source_id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	LocationState  *string   `json:"location_state,omitempty"`
	LocationSuburb *string   `json:"location_suburb,omitempty"`
	Trade          *string   `json:"trade,omitempty"`
	EmploymentType *string   `json:"employment_type,omitempty"`
	PayRangeMin    *float64  `json:"pay_range_min,omitempty"`
	PayRangeMax    *float64  `json:"pay_range_max,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Requirements   *string   `json:"requirements,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	PostedAt       *FlexTime `json:"posted_at,omitempty"`
	ScrapedAt      *FlexTime `json:"scraped_at,omitempty"`
	JobURL         *string   `json:"job_url,omitempty"`
	IsRemote       *bool     `json:"is_remote,omitempty"`
	CompanyURL     *string   `json:"company_url,omitempty"`
}

// IngestionResult is what one pipeline pass reports back to its caller.
type IngestionResult struct {
	NewCount       int      `json:"newCount"`
	UpdatedCount   int      `json:"updatedCount"`
	DedupedCount   int      `json:"dedupedCount"`
	TotalProcessed int      `json:"totalProcessed"`
	Errors         []string `json:"errors"`
}

// Stats summarises the catalog.
type Stats struct {
	TotalJobs      int            `json:"totalJobs"`
	ActiveJobs     int            `json:"activeJobs"`
	JobsAddedToday int            `json:"jobsAddedToday"`
	ByTrade        map[string]int `json:"byTrade"`
	ByState        map[string]int `json:"byState"`
}

// StringPtr returns nil for "", otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
