package satellite_test

import (
	"context"
	"fmt"
	"net/mail"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
	emailsvc "github.com/trezcool/finadmin/services/email"
	inmemdb "github.com/trezcool/finadmin/storage/database/inmem"
	"github.com/trezcool/finadmin/testutil"
)

type fixture struct {
	svc     satellite.Service
	repo    satellite.Repository
	mfoRepo mfo.Repository
	mail    *emailsvc.ServiceMock
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	mfoRepo := inmemdb.NewMFORepository(db)
	repo := inmemdb.NewSatelliteRepository(db)
	mailSvc := emailsvc.NewServiceMock(core.NewTestConfig())
	svc := satellite.NewService(satellite.Deps{
		Repo:       repo,
		MFOSvc:     mfo.NewService(mfoRepo),
		MailSvc:    mailSvc,
		Recipients: []mail.Address{{Address: "seo@example.com"}},
	})
	return fixture{svc: svc, repo: repo, mfoRepo: mfoRepo, mail: mailSvc}
}

func TestNewKey_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	f := setup(t)
	testutil.CreateKey(t, f.repo, "zaim-online", "Online")

	t.Run("invalid fields", func(t *testing.T) {
		nk := satellite.NewKey{Key: "zaim online", TitleUK: "x", MFOIDs: []int{1, -2}}
		err := nk.Validate(context.Background(), validate, f.svc)
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		assert.Equal(t, map[string]string{
			"key":        "only lowercase letters, digits and hyphens are allowed",
			"title_ru":   "this field is required",
			"mfo_ids[1]": "mfo_ids[1] must be greater than 0",
		}, core.TranslateErrors(vErrs, translator))
	})

	t.Run("taken key", func(t *testing.T) {
		nk := satellite.NewKey{Key: "Zaim-Online", TitleUK: "a", TitleRU: "b"}
		err := nk.Validate(context.Background(), validate, f.svc)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	m1 := testutil.CreateMFO(t, f.mfoRepo, "One", "one", true)
	m2 := testutil.CreateMFO(t, f.mfoRepo, "Two", "two", true)

	key, err := f.svc.Create(ctx, satellite.NewKey{Key: "fast", TitleUK: "Швидко", TitleRU: "Быстро", MFOIDs: []int{m2.ID, m1.ID, m2.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int{m1.ID, m2.ID}, key.MFOIDs)
	assert.Equal(t, "Швидко", key.TitleUK)

	_, err = f.svc.Create(ctx, satellite.NewKey{Key: "slow", TitleUK: "a", TitleRU: "b", MFOIDs: []int{404}})
	assert.True(t, core.IsValidationError(err))
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	m1 := testutil.CreateMFO(t, f.mfoRepo, "One", "one", true)
	testutil.CreateKey(t, f.repo, "night", "Nightly loans", m1.ID)
	testutil.CreateKey(t, f.repo, "day", "Daily loans")

	keys, err := f.svc.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, "day", keys[0].Key)

	keys, err = f.svc.Query(ctx, &satellite.QueryFilter{MFOID: m1.ID})
	require.NoError(t, err)
	if assert.Len(t, keys, 1) {
		assert.Equal(t, "night", keys[0].Key)
	}

	keys, err = f.svc.Query(ctx, &satellite.QueryFilter{Search: "DAILY"})
	require.NoError(t, err)
	if assert.Len(t, keys, 1) {
		assert.Equal(t, "day", keys[0].Key)
	}
}

func TestService_ApplyMFOChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("applies both lists", func(t *testing.T) {
		f := setup(t)
		m1 := testutil.CreateMFO(t, f.mfoRepo, "One", "one", true)
		m2 := testutil.CreateMFO(t, f.mfoRepo, "Two", "two", true)
		m3 := testutil.CreateMFO(t, f.mfoRepo, "Three", "three", true)
		key := testutil.CreateKey(t, f.repo, "fast", "Fast", m1.ID, m2.ID)

		updated, err := f.svc.ApplyMFOChanges(ctx, key.ID, relation.ChangeSet{Added: []int{m3.ID, m3.ID}, Removed: []int{m1.ID}}, "bob")
		require.NoError(t, err)
		assert.Equal(t, []int{m2.ID, m3.ID}, updated.MFOIDs)
		assert.True(t, !updated.UpdatedAt.Before(key.UpdatedAt))

		stored, err := f.svc.GetByID(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{m2.ID, m3.ID}, stored.MFOIDs)

		sent := f.mail.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, `MFOs of "fast" changed (+1/-1)`, sent[0].Subject)
			assert.Contains(t, sent[0].TextContent, "changed by bob")
			assert.Contains(t, sent[0].TextContent, "+ Three (#3)")
			assert.Contains(t, sent[0].TextContent, "- One (#1)")
		}
	})

	t.Run("removing an unlinked mfo is a no-op", func(t *testing.T) {
		f := setup(t)
		m1 := testutil.CreateMFO(t, f.mfoRepo, "One", "one", true)
		key := testutil.CreateKey(t, f.repo, "fast", "Fast", m1.ID)

		updated, err := f.svc.ApplyMFOChanges(ctx, key.ID, relation.ChangeSet{Removed: []int{77}}, "bob")
		require.NoError(t, err)
		assert.Equal(t, []int{m1.ID}, updated.MFOIDs)
	})

	t.Run("empty change-set", func(t *testing.T) {
		f := setup(t)
		key := testutil.CreateKey(t, f.repo, "fast", "Fast")

		updated, err := f.svc.ApplyMFOChanges(ctx, key.ID, relation.ChangeSet{}, "bob")
		require.NoError(t, err)
		assert.Equal(t, key, updated)
		assert.Empty(t, f.mail.SentMessages())
	})

	t.Run("rejected", func(t *testing.T) {
		f := setup(t)
		m1 := testutil.CreateMFO(t, f.mfoRepo, "One", "one", true)
		key := testutil.CreateKey(t, f.repo, "fast", "Fast", m1.ID)

		tests := []struct {
			name string
			cs   relation.ChangeSet
		}{
			{name: "overlap", cs: relation.ChangeSet{Added: []int{m1.ID}, Removed: []int{m1.ID}}},
			{name: "non positive", cs: relation.ChangeSet{Added: []int{0}}},
			{name: "unknown mfo", cs: relation.ChangeSet{Added: []int{404}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.ApplyMFOChanges(ctx, key.ID, tt.cs, "bob")
				assert.True(t, core.IsValidationError(err), "got %v", err)

				stored, err := f.svc.GetByID(ctx, key.ID)
				require.NoError(t, err)
				assert.Equal(t, []int{m1.ID}, stored.MFOIDs)
			})
		}
		assert.Empty(t, f.mail.SentMessages())
	})

	t.Run("field errors in stable order", func(t *testing.T) {
		f := setup(t)
		m1 := testutil.CreateMFO(t, f.mfoRepo, "One", "one", true)
		key := testutil.CreateKey(t, f.repo, "fast", "Fast", m1.ID)
		cs := relation.ChangeSet{Added: []int{-1, m1.ID}, Removed: []int{0, m1.ID}}
		want := "added: ids must be positive integers; " +
			"removed: ids must be positive integers; " +
			fmt.Sprintf("removed: ids cannot be both added and removed: %d", m1.ID)

		for i := 0; i < 20; i++ {
			_, err := f.svc.ApplyMFOChanges(ctx, key.ID, cs, "bob")
			require.True(t, core.IsValidationError(err), "got %v", err)
			assert.EqualError(t, err, want)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.ApplyMFOChanges(ctx, 42, relation.ChangeSet{Removed: []int{1}}, "bob")
		assert.Equal(t, satellite.ErrNotFound, err)
	})
}
