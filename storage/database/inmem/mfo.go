package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/relation"
)

type mfoRepository struct {
	db *mfoTable
}

var _ mfo.Repository = (*mfoRepository)(nil)

func NewMFORepository(db *DB) mfo.Repository {
	return &mfoRepository{db: db.mfo}
}

func (repo *mfoRepository) CheckSlugUniqueness(_ context.Context, slug string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.table {
		if m.Slug == slug {
			return mfo.ErrSlugExists
		}
	}
	return nil
}

func (repo *mfoRepository) CreateMFO(_ context.Context, m mfo.MFO) (mfo.MFO, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pk++
	m.ID = repo.db.pk
	m.Tags = append([]string{}, m.Tags...)
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *mfoRepository) QueryMFOs(_ context.Context, filter *mfo.QueryFilter, ordering []core.DBOrdering) ([]mfo.MFO, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ids relation.Set
	if filter != nil && filter.IDs != nil {
		ids = relation.NewSet(filter.IDs...)
	}

	mfos := make([]mfo.MFO, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		if filter != nil {
			if filter.Search != "" && !containsFold(m.Name, filter.Search) && !containsFold(m.Slug, filter.Search) {
				continue
			}
			if filter.IsActive != nil && m.IsActive != *filter.IsActive {
				continue
			}
			if ids != nil && !ids.Has(m.ID) {
				continue
			}
		}
		mfos = append(mfos, *m)
	}

	sort.SliceStable(mfos, func(i, j int) bool { return lessMFO(mfos[i], mfos[j], ordering) })
	return mfos, nil
}

func (repo *mfoRepository) GetMFO(_ context.Context, id int) (mfo.MFO, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return mfo.MFO{}, mfo.ErrNotFound
}

func (repo *mfoRepository) ExistingIDs(_ context.Context, ids []int) ([]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	existing := relation.NewSet()
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			existing.Add(id)
		}
	}
	return existing.Slice(), nil
}

// lessMFO compares on each ordering in turn, falling back on the ID.
func lessMFO(a, b mfo.MFO, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "id":
			cmp = compareInts(a.ID, b.ID)
		case "name":
			cmp = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "rating":
			switch {
			case a.Rating < b.Rating:
				cmp = -1
			case a.Rating > b.Rating:
				cmp = 1
			}
		case "created_at":
			switch {
			case a.CreatedAt.Before(b.CreatedAt):
				cmp = -1
			case a.CreatedAt.After(b.CreatedAt):
				cmp = 1
			}
		}
		if cmp != 0 {
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
	}
	return a.ID < b.ID
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
