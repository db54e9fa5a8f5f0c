// Package testutil holds fixtures shared by the tests of several packages.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/satellite"
	"github.com/trezcool/finadmin/core/user"
	"github.com/trezcool/finadmin/storage/database"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateMFO(t *testing.T, repo mfo.Repository, name, slug string, isActive bool, tags ...string) mfo.MFO {
	t.Helper()
	now := time.Now().UTC()
	m, err := repo.CreateMFO(context.Background(), mfo.MFO{
		Name:      name,
		Slug:      slug,
		Website:   "https://" + slug + ".example.com",
		IsActive:  isActive,
		Tags:      append([]string{}, tags...),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateMFO() failed: %v", err)
	}
	return m
}

func CreateKey(t *testing.T, repo satellite.Repository, key, title string, mfoIDs ...int) satellite.Key {
	t.Helper()
	now := time.Now().UTC()
	k, err := repo.CreateKey(context.Background(), satellite.Key{
		Key:       key,
		TitleUK:   title,
		TitleRU:   title,
		MFOIDs:    mfoIDs,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateKey() failed: %v", err)
	}
	return k
}

// PrepareDB returns a migrated, empty postgres database.
// The test is skipped unless TEST_DATABASE is set, e.g. TEST_DATABASE=finadmin_test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	name := os.Getenv("TEST_DATABASE")
	if name == "" {
		t.Skip("TEST_DATABASE not set")
	}

	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.Database.Name = name
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.ExecContext(ctx, "TRUNCATE satellite_key_mfos, satellite_keys, mfos, users RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}
