package mfo

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/relation"
)

var (
	// errors
	ErrNotFound   = errors.New("mfo not found")
	ErrSlugExists = errors.New("an mfo with this slug already exists")
)

type (
	Repository interface {
		CheckSlugUniqueness(ctx context.Context, slug string) error
		CreateMFO(ctx context.Context, m MFO) (MFO, error)
		// QueryMFOs applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on MFO.Name or MFO.Slug.
		QueryMFOs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]MFO, error)
		GetMFO(ctx context.Context, id int) (MFO, error)
		// ExistingIDs returns the subset of ids that exist.
		ExistingIDs(ctx context.Context, ids []int) ([]int, error)
	}

	Service interface {
		CheckSlugUniqueness(ctx context.Context, slug string) error
		Create(ctx context.Context, nm NewMFO) (MFO, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]MFO, error)
		GetByID(ctx context.Context, id int) (MFO, error)
		MissingIDs(ctx context.Context, ids []int) ([]int, error)
		// ListCandidates lists every MFO, active or not, as a relation candidate.
		ListCandidates(ctx context.Context) ([]relation.Candidate, error)
	}

	service struct {
		repo Repository
	}
)

var (
	_ Service         = (*service)(nil)
	_ relation.Lister = (*service)(nil)
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckSlugUniqueness(ctx context.Context, slug string) error {
	if err := svc.repo.CheckSlugUniqueness(ctx, slug); err != nil {
		if err == ErrSlugExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nm NewMFO) (MFO, error) {
	now := time.Now().UTC()
	isActive := true
	if nm.IsActive != nil {
		isActive = *nm.IsActive
	}
	m := MFO{
		Name:      nm.Name,
		Slug:      nm.Slug,
		Website:   nm.Website,
		Rating:    nm.Rating,
		IsActive:  isActive,
		Tags:      nm.TagList(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateMFO(ctx, m)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]MFO, error) {
	ordering = CleanOrdering(ordering)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	return svc.repo.QueryMFOs(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id int) (MFO, error) {
	return svc.repo.GetMFO(ctx, id)
}

// MissingIDs returns the ids that match no MFO, sorted.
func (svc *service) MissingIDs(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return []int{}, nil
	}
	existing, err := svc.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return relation.NewSet(ids...).Minus(relation.NewSet(existing...)), nil
}

func (svc *service) ListCandidates(ctx context.Context) ([]relation.Candidate, error) {
	mfos, err := svc.Query(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	return ToCandidates(mfos), nil
}
