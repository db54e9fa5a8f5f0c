package inmemdb

import (
	"sync"

	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/satellite"
	"github.com/trezcool/finadmin/core/user"
)

type (
	// DB is an in-memory database used by tests and by the api in DEV mode without postgres.
	DB struct {
		user      *userTable
		mfo       *mfoTable
		satellite *satelliteTable
	}

	userTable struct {
		sync.RWMutex
		pk    int
		table map[int]*user.User
	}

	mfoTable struct {
		sync.RWMutex
		pk    int
		table map[int]*mfo.MFO
	}

	// satelliteTable also holds the key <-> mfo links, so that a change-set is applied under one lock.
	satelliteTable struct {
		sync.RWMutex
		pk    int
		table map[int]*satellite.Key
		links map[int]map[int]struct{} // keyID -> mfoIDs
	}
)

func Open() *DB {
	return &DB{
		user:      &userTable{table: make(map[int]*user.User)},
		mfo:       &mfoTable{table: make(map[int]*mfo.MFO)},
		satellite: &satelliteTable{table: make(map[int]*satellite.Key), links: make(map[int]map[int]struct{})},
	}
}
