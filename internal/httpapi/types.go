package httpapi

import (
	"time"

	"jobintel-engine/internal/catalog"
	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/poll"
)

type LocationDTO struct {
	State  *string `json:"state"`
	Suburb *string `json:"suburb"`
}

type PayRangeDTO struct {
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Currency string   `json:"currency"`
	Unit     string   `json:"unit"`
}

type SourceDTO struct {
	Name string  `json:"name"`
	URL  *string `json:"url"`
}

type JobDTO struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Company        string       `json:"company"`
	Location       LocationDTO  `json:"location"`
	Trade          *string      `json:"trade"`
	EmploymentType *string      `json:"employmentType"`
	PayRange       *PayRangeDTO `json:"payRange"`
	Description    string       `json:"description"`
	JobURL         *string      `json:"jobUrl"`
	Tags           []string     `json:"tags"`
	PostedAt       *time.Time   `json:"postedAt"`
	Source         SourceDTO    `json:"source"`
}

type JobsPage struct {
	Items      []JobDTO `json:"items"`
	TotalCount int      `json:"totalCount"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}

type IngestionStats struct {
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

type IngestResponse struct {
	RunID          int64          `json:"runId"`
	Source         string         `json:"source"`
	JobsFound      int            `json:"jobsFound"`
	IngestionStats IngestionStats `json:"ingestionStats"`
	Errors         []string       `json:"errors"`
}

func toJobDTO(p domain.Posting) JobDTO {
	dto := JobDTO{
		ID:             p.ID,
		Title:          p.Title,
		Company:        p.Company,
		Location:       LocationDTO{State: p.State, Suburb: p.Suburb},
		Trade:          p.Trade,
		EmploymentType: p.EmploymentType,
		Description:    p.Description,
		JobURL:         p.JobURL,
		Tags:           p.Tags,
		PostedAt:       p.PostedAt,
		Source:         SourceDTO{Name: p.Source, URL: p.JobURL},
	}
	if dto.Tags == nil {
		dto.Tags = []string{}
	}
	if p.PayMin != nil || p.PayMax != nil {
		dto.PayRange = &PayRangeDTO{Min: p.PayMin, Max: p.PayMax, Currency: "AUD", Unit: "hour"}
	}
	return dto
}

func toJobsPage(pg catalog.Page) JobsPage {
	items := make([]JobDTO, 0, len(pg.Items))
	for _, p := range pg.Items {
		items = append(items, toJobDTO(p))
	}
	return JobsPage{
		Items:      items,
		TotalCount: pg.TotalCount,
		Page:       pg.Page,
		PageSize:   pg.PageSize,
		TotalPages: pg.TotalPages(),
	}
}

func toIngestResponse(out poll.Outcome) IngestResponse {
	errs := out.Result.Errors
	if errs == nil {
		errs = []string{}
	}
	return IngestResponse{
		RunID:     out.RunID,
		Source:    out.Source,
		JobsFound: out.JobsFound,
		IngestionStats: IngestionStats{
			New:        out.Result.NewCount,
			Updated:    out.Result.UpdatedCount,
			Duplicates: out.Result.DedupedCount,
			Errors:     len(out.Result.Errors),
		},
		Errors: errs,
	}
}
