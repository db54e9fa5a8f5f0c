package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
)

const mfoColumns = "id, name, slug, website, rating, is_active, tags, created_at, updated_at"

type mfoRow struct {
	ID        int            `db:"id"`
	Name      string         `db:"name"`
	Slug      string         `db:"slug"`
	Website   null.String    `db:"website"`
	Rating    float64        `db:"rating"`
	IsActive  bool           `db:"is_active"`
	Tags      pq.StringArray `db:"tags"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r mfoRow) toMFO() mfo.MFO {
	return mfo.MFO{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		Website:   r.Website.String,
		Rating:    r.Rating,
		IsActive:  r.IsActive,
		Tags:      append([]string{}, r.Tags...),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type mfoRepository struct {
	db core.DB
}

var _ mfo.Repository = (*mfoRepository)(nil)

func NewMFORepository(db core.DB) mfo.Repository {
	return &mfoRepository{db: db}
}

func (repo *mfoRepository) CheckSlugUniqueness(ctx context.Context, slug string) error {
	var found bool
	if err := repo.db.GetContext(ctx, &found, "SELECT EXISTS (SELECT 1 FROM mfos WHERE slug = $1)", slug); err != nil {
		return err
	}
	if found {
		return mfo.ErrSlugExists
	}
	return nil
}

func (repo *mfoRepository) CreateMFO(ctx context.Context, m mfo.MFO) (mfo.MFO, error) {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	err := repo.db.GetContext(ctx, &m.ID, `
		INSERT INTO mfos (name, slug, website, rating, is_active, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		m.Name, m.Slug, nullString(m.Website), m.Rating, m.IsActive, pq.Array(m.Tags), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return mfo.MFO{}, mfo.ErrSlugExists
		}
		return mfo.MFO{}, errors.Wrap(err, "inserting mfo")
	}
	return m, nil
}

// buildMFOQuery returns the query and its args, written with "?" bindvars.
func buildMFOQuery(filter *mfo.QueryFilter, ordering []core.DBOrdering) (string, []interface{}, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, `(name ILIKE ? OR slug ILIKE ?)`)
			pattern := likePattern(filter.Search)
			args = append(args, pattern, pattern)
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if filter.IDs != nil {
			conds = append(conds, "id IN (?)")
			args = append(args, filter.IDs)
		}
	}

	q := "SELECT " + mfoColumns + " FROM mfos"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering)

	if filter != nil && len(filter.IDs) > 0 {
		return sqlx.In(q, args...)
	}
	return q, args, nil
}

func (repo *mfoRepository) QueryMFOs(ctx context.Context, filter *mfo.QueryFilter, ordering []core.DBOrdering) ([]mfo.MFO, error) {
	if filter != nil && filter.IDs != nil && len(filter.IDs) == 0 {
		return []mfo.MFO{}, nil
	}
	q, args, err := buildMFOQuery(filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "building mfo query")
	}

	var rows []mfoRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying mfos")
	}
	mfos := make([]mfo.MFO, 0, len(rows))
	for _, r := range rows {
		mfos = append(mfos, r.toMFO())
	}
	return mfos, nil
}

func (repo *mfoRepository) GetMFO(ctx context.Context, id int) (mfo.MFO, error) {
	var row mfoRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+mfoColumns+" FROM mfos WHERE id = $1", id); err != nil {
		return mfo.MFO{}, trapNoRowsErr(err, mfo.ErrNotFound)
	}
	return row.toMFO(), nil
}

func (repo *mfoRepository) ExistingIDs(ctx context.Context, ids []int) ([]int, error) {
	existing := make([]int, 0, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	q, args, err := sqlx.In("SELECT id FROM mfos WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	if err = repo.db.SelectContext(ctx, &existing, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying mfo ids")
	}
	return existing, nil
}
