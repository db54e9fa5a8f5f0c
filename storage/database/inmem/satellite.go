package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

type satelliteRepository struct {
	db *satelliteTable
}

var _ satellite.Repository = (*satelliteRepository)(nil)

func NewSatelliteRepository(db *DB) satellite.Repository {
	return &satelliteRepository{db: db.satellite}
}

// key returns a copy of the key with its linked MFO IDs. Caller must hold the lock.
func (repo *satelliteRepository) key(id int) (satellite.Key, bool) {
	k, ok := repo.db.table[id]
	if !ok {
		return satellite.Key{}, false
	}
	key := *k
	ids := make(relation.Set, len(repo.db.links[id]))
	for mfoID := range repo.db.links[id] {
		ids.Add(mfoID)
	}
	key.MFOIDs = ids.Slice()
	return key, true
}

func (repo *satelliteRepository) CheckKeyUniqueness(_ context.Context, key string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, k := range repo.db.table {
		if k.Key == key {
			return satellite.ErrKeyExists
		}
	}
	return nil
}

func (repo *satelliteRepository) CreateKey(_ context.Context, k satellite.Key) (satellite.Key, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pk++
	k.ID = repo.db.pk
	links := make(map[int]struct{}, len(k.MFOIDs))
	for _, id := range k.MFOIDs {
		links[id] = struct{}{}
	}
	k.MFOIDs = nil
	repo.db.table[k.ID] = &k
	repo.db.links[k.ID] = links

	key, _ := repo.key(k.ID)
	return key, nil
}

func (repo *satelliteRepository) QueryKeys(_ context.Context, filter *satellite.QueryFilter) ([]satellite.Key, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	keys := make([]satellite.Key, 0, len(repo.db.table))
	for id := range repo.db.table {
		key, _ := repo.key(id)
		if filter != nil {
			if filter.Search != "" && !containsFold(key.Key, filter.Search) &&
				!containsFold(key.TitleUK, filter.Search) && !containsFold(key.TitleRU, filter.Search) {
				continue
			}
			if filter.MFOID != 0 {
				if _, ok := repo.db.links[id][filter.MFOID]; !ok {
					continue
				}
			}
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return keys, nil
}

func (repo *satelliteRepository) GetKey(_ context.Context, id int) (satellite.Key, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if key, ok := repo.key(id); ok {
		return key, nil
	}
	return satellite.Key{}, satellite.ErrNotFound
}

func (repo *satelliteRepository) ApplyMFOChanges(_ context.Context, keyID int, cs relation.ChangeSet, updatedAt time.Time) (satellite.Key, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	k, ok := repo.db.table[keyID]
	if !ok {
		return satellite.Key{}, satellite.ErrNotFound
	}
	links := repo.db.links[keyID]
	for _, id := range cs.Removed {
		delete(links, id)
	}
	for _, id := range cs.Added {
		links[id] = struct{}{}
	}
	k.UpdatedAt = updatedAt

	key, _ := repo.key(keyID)
	return key, nil
}
