package mfo

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/relation"
)

// orderable fields, mapped to their column
var orderingFields = map[string]string{
	"id":         "id",
	"name":       "name",
	"rating":     "rating",
	"created_at": "created_at",
}

// MFO is a microfinance organization.
type MFO struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Website   string    `json:"website"`
	Rating    float64   `json:"rating"`
	IsActive  bool      `json:"is_active"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Candidate returns the MFO as a relation candidate.
func (m MFO) Candidate() relation.Candidate {
	detail := m.Website
	if detail == "" {
		detail = m.Slug
	}
	return relation.Candidate{ID: m.ID, Label: m.Name, Detail: detail}
}

func ToCandidates(mfos []MFO) []relation.Candidate {
	cands := make([]relation.Candidate, 0, len(mfos))
	for _, m := range mfos {
		cands = append(cands, m.Candidate())
	}
	return cands
}

// NewMFO contains information needed to create a new MFO.
// Tags is the comma-separated list typed in the dashboard form.
type NewMFO struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Slug     string  `json:"slug" validate:"required,slug,max=255"`
	Website  string  `json:"website" validate:"omitempty,url"`
	Rating   float64 `json:"rating" validate:"gte=0,lte=5"`
	IsActive *bool   `json:"is_active"`
	Tags     string  `json:"tags"`
}

func (nm *NewMFO) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Slug = core.CleanString(nm.Slug, true /* lower */)
	nm.Website = core.CleanString(nm.Website)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	return svc.CheckSlugUniqueness(ctx, nm.Slug)
}

func (nm NewMFO) TagList() []string {
	return core.SplitList(nm.Tags, true /* lower */)
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
	IDs      []int  `query:"id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.IsActive == nil && qf.IDs == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// CleanOrdering drops orderings on unknown fields and maps the rest to their column.
func CleanOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	cleaned := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := orderingFields[ord.Field]; ok {
			cleaned = append(cleaned, core.DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return cleaned
}
