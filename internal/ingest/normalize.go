package ingest

import (
	"strings"

	"jobintel-engine/internal/domain"
)

// ValidationError reports a raw record that is missing a required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field " + e.Field
}

// Normalize maps a raw record onto the canonical posting shape. It does not
// compute identity keys or storage timestamps. raw.Source wins over source
// when both are set.
func Normalize(raw domain.RawRecord, source string) (domain.Posting, error) {
	src := strings.ToLower(strings.TrimSpace(raw.Source))
	if src == "" {
		src = strings.ToLower(strings.TrimSpace(source))
	}

	p := domain.Posting{
		Source:         src,
		SourceID:       strings.TrimSpace(raw.SourceID),
		Title:          strings.TrimSpace(raw.Title),
		Company:        strings.TrimSpace(raw.Company),
		Description:    strings.TrimSpace(domain.Deref(raw.Description)),
		Requirements:   trimmed(raw.Requirements),
		State:          trimmed(raw.LocationState),
		Suburb:         trimmed(raw.LocationSuburb),
		Trade:          trimmed(raw.Trade),
		EmploymentType: trimmed(raw.EmploymentType),
		PayMin:         raw.PayRangeMin,
		PayMax:         raw.PayRangeMax,
		Tags:           cleanTags(raw.Tags),
		JobURL:         trimmed(raw.JobURL),
		PostedAt:       raw.PostedAt.Ptr(),
		IsActive:       true,
	}

	switch {
	case p.Source == "":
		return p, &ValidationError{Field: "source"}
	case p.SourceID == "":
		return p, &ValidationError{Field: "sourceId"}
	case p.Title == "":
		return p, &ValidationError{Field: "title"}
	case p.Company == "":
		return p, &ValidationError{Field: "company"}
	}
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return domain.StringPtr(strings.TrimSpace(*s))
}

func cleanTags(in []string) []string {
	var out []string
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
