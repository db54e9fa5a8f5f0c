package satellite

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/finadmin/core"
)

// Key is a satellite SEO page key. Its MFOs are listed on the page.
// UK/RU titles are passed through as-is.
type Key struct {
	ID        int       `json:"id"`
	Key       string    `json:"key"`
	TitleUK   string    `json:"title_uk"`
	TitleRU   string    `json:"title_ru"`
	MFOIDs    []int     `json:"mfo_ids"` // sorted
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewKey contains information needed to create a new Key.
type NewKey struct {
	Key     string `json:"key" validate:"required,slug,max=255"`
	TitleUK string `json:"title_uk" validate:"required,max=500"`
	TitleRU string `json:"title_ru" validate:"required,max=500"`
	MFOIDs  []int  `json:"mfo_ids" validate:"omitempty,dive,gt=0"`
}

func (nk *NewKey) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nk.Key = core.CleanString(nk.Key, true /* lower */)
	nk.TitleUK = core.CleanString(nk.TitleUK)
	nk.TitleRU = core.CleanString(nk.TitleRU)

	if err := validate.Struct(nk); err != nil {
		return err
	}
	return svc.CheckKeyUniqueness(ctx, nk.Key)
}

type QueryFilter struct {
	Search string `query:"search"`
	MFOID  int    `query:"mfo_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
