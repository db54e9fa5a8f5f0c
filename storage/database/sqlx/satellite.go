package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

// keySelect aggregates the linked MFO IDs of each key.
const keySelect = `
	SELECT k.id, k.key, k.title_uk, k.title_ru, k.created_at, k.updated_at,
		COALESCE(array_agg(l.mfo_id ORDER BY l.mfo_id) FILTER (WHERE l.mfo_id IS NOT NULL), '{}') AS mfo_ids
	FROM satellite_keys k
	LEFT JOIN satellite_key_mfos l ON l.satellite_key_id = k.id`

type keyRow struct {
	ID        int           `db:"id"`
	Key       string        `db:"key"`
	TitleUK   string        `db:"title_uk"`
	TitleRU   string        `db:"title_ru"`
	MFOIDs    pq.Int64Array `db:"mfo_ids"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

func (r keyRow) toKey() satellite.Key {
	return satellite.Key{
		ID:        r.ID,
		Key:       r.Key,
		TitleUK:   r.TitleUK,
		TitleRU:   r.TitleRU,
		MFOIDs:    toInts(r.MFOIDs),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type satelliteRepository struct {
	db core.DB
}

var _ satellite.Repository = (*satelliteRepository)(nil)

func NewSatelliteRepository(db core.DB) satellite.Repository {
	return &satelliteRepository{db: db}
}

func getKey(ctx context.Context, exec core.DBExecutor, id int) (satellite.Key, error) {
	var row keyRow
	if err := exec.GetContext(ctx, &row, keySelect+" WHERE k.id = $1 GROUP BY k.id", id); err != nil {
		return satellite.Key{}, trapNoRowsErr(err, satellite.ErrNotFound)
	}
	return row.toKey(), nil
}

func linkMFOs(ctx context.Context, exec core.DBExecutor, keyID int, mfoIDs []int) error {
	if len(mfoIDs) == 0 {
		return nil
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO satellite_key_mfos (satellite_key_id, mfo_id)
		SELECT $1, unnest($2::integer[])
		ON CONFLICT DO NOTHING`,
		keyID, toInt64s(mfoIDs),
	)
	return errors.Wrap(err, "linking mfos")
}

func unlinkMFOs(ctx context.Context, exec core.DBExecutor, keyID int, mfoIDs []int) error {
	if len(mfoIDs) == 0 {
		return nil
	}
	_, err := exec.ExecContext(ctx,
		"DELETE FROM satellite_key_mfos WHERE satellite_key_id = $1 AND mfo_id = ANY($2)",
		keyID, toInt64s(mfoIDs),
	)
	return errors.Wrap(err, "unlinking mfos")
}

func (repo *satelliteRepository) CheckKeyUniqueness(ctx context.Context, key string) error {
	var found bool
	if err := repo.db.GetContext(ctx, &found, "SELECT EXISTS (SELECT 1 FROM satellite_keys WHERE key = $1)", key); err != nil {
		return err
	}
	if found {
		return satellite.ErrKeyExists
	}
	return nil
}

func (repo *satelliteRepository) CreateKey(ctx context.Context, k satellite.Key) (satellite.Key, error) {
	var created satellite.Key
	err := withTx(ctx, repo.db, func(tx core.DBExecutor) error {
		var id int
		err := tx.GetContext(ctx, &id, `
			INSERT INTO satellite_keys (key, title_uk, title_ru, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			k.Key, k.TitleUK, k.TitleRU, k.CreatedAt, k.UpdatedAt,
		)
		if err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return satellite.ErrKeyExists
			}
			return errors.Wrap(err, "inserting satellite key")
		}
		if err = linkMFOs(ctx, tx, id, k.MFOIDs); err != nil {
			return err
		}
		created, err = getKey(ctx, tx, id)
		return err
	})
	return created, err
}

func (repo *satelliteRepository) QueryKeys(ctx context.Context, filter *satellite.QueryFilter) ([]satellite.Key, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, "(k.key ILIKE ? OR k.title_uk ILIKE ? OR k.title_ru ILIKE ?)")
			pattern := likePattern(filter.Search)
			args = append(args, pattern, pattern, pattern)
		}
		if filter.MFOID != 0 {
			conds = append(conds, "EXISTS (SELECT 1 FROM satellite_key_mfos x WHERE x.satellite_key_id = k.id AND x.mfo_id = ?)")
			args = append(args, filter.MFOID)
		}
	}
	q := keySelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " GROUP BY k.id ORDER BY k.key"

	var rows []keyRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying satellite keys")
	}
	keys := make([]satellite.Key, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.toKey())
	}
	return keys, nil
}

func (repo *satelliteRepository) GetKey(ctx context.Context, id int) (satellite.Key, error) {
	return getKey(ctx, repo.db, id)
}

func (repo *satelliteRepository) ApplyMFOChanges(ctx context.Context, keyID int, cs relation.ChangeSet, updatedAt time.Time) (satellite.Key, error) {
	var updated satellite.Key
	err := withTx(ctx, repo.db, func(tx core.DBExecutor) error {
		// lock the key so that concurrent change-sets apply one after the other
		var id int
		if err := tx.GetContext(ctx, &id, "SELECT id FROM satellite_keys WHERE id = $1 FOR UPDATE", keyID); err != nil {
			return trapNoRowsErr(err, satellite.ErrNotFound)
		}
		if err := unlinkMFOs(ctx, tx, keyID, cs.Removed); err != nil {
			return err
		}
		if err := linkMFOs(ctx, tx, keyID, cs.Added); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE satellite_keys SET updated_at = $2 WHERE id = $1", keyID, updatedAt); err != nil {
			return errors.Wrap(err, "touching satellite key")
		}
		var err error
		updated, err = getKey(ctx, tx, keyID)
		return err
	})
	return updated, err
}
