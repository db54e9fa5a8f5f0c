package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
	"github.com/trezcool/finadmin/core/user"
	sqlxrepos "github.com/trezcool/finadmin/storage/database/sqlx"
	"github.com/trezcool/finadmin/testutil"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(testutil.PrepareDB(t))
	bob := testutil.CreateUser(t, repo, "Bob", "bob", "bob@example.com", "Tr1cky-Pa55!", []string{user.RoleEditor}, true)
	testutil.CreateUser(t, repo, "Ann", "ann", "", "Tr1cky-Pa55!", nil, true)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "bob", ""))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "robert", "bob@example.com"))
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "bob", "bob@example.com", bob))
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "carl", ""))

	got, err := repo.GetUserByUsernameOrEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)
	assert.Equal(t, []string{user.RoleEditor}, got.Roles)

	got.Name = "Robert"
	got.Roles = nil
	got.PasswordHash = nil
	updated, err := repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)
	assert.Equal(t, []string{user.RoleEditor}, updated.Roles)
	assert.NoError(t, updated.CheckPassword("Tr1cky-Pa55!"))

	_, err = repo.GetUserByID(ctx, 999)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestSatelliteRepository_ApplyMFOChanges(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	mfoRepo := sqlxrepos.NewMFORepository(db)
	repo := sqlxrepos.NewSatelliteRepository(db)

	m1 := testutil.CreateMFO(t, mfoRepo, "One", "one", true, "fast")
	m2 := testutil.CreateMFO(t, mfoRepo, "Two", "two", true)
	m3 := testutil.CreateMFO(t, mfoRepo, "Three", "three", false)
	key := testutil.CreateKey(t, repo, "fast", "Fast", m2.ID, m1.ID)
	assert.Equal(t, []int{m1.ID, m2.ID}, key.MFOIDs)

	updated, err := repo.ApplyMFOChanges(ctx, key.ID, relation.ChangeSet{Added: []int{m3.ID}, Removed: []int{m1.ID}}, key.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, []int{m2.ID, m3.ID}, updated.MFOIDs)

	keys, err := repo.QueryKeys(ctx, &satellite.QueryFilter{MFOID: m3.ID})
	require.NoError(t, err)
	if assert.Len(t, keys, 1) {
		assert.Equal(t, []int{m2.ID, m3.ID}, keys[0].MFOIDs)
	}

	_, err = repo.ApplyMFOChanges(ctx, 999, relation.ChangeSet{Added: []int{m1.ID}}, key.UpdatedAt)
	assert.Equal(t, satellite.ErrNotFound, err)

	mfos, err := mfoRepo.QueryMFOs(ctx, &mfo.QueryFilter{IDs: []int{m3.ID, m1.ID}}, nil)
	require.NoError(t, err)
	if assert.Len(t, mfos, 2) {
		assert.Equal(t, []string{"fast"}, mfos[0].Tags)
	}

	existing, err := mfoRepo.ExistingIDs(ctx, []int{m1.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, []int{m1.ID}, existing)
}
