package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/satellite"
	"github.com/trezcool/finadmin/core/user"
	inmemdb "github.com/trezcool/finadmin/storage/database/inmem"
	"github.com/trezcool/finadmin/testutil"
)

const goodPwd = "Tr1cky-Pa55!"

type repos struct {
	user      user.Repository
	mfo       mfo.Repository
	satellite satellite.Repository
}

func setup(t *testing.T) (*commandLine, repos) {
	t.Helper()
	db := inmemdb.Open()
	r := repos{
		user:      inmemdb.NewUserRepository(db),
		mfo:       inmemdb.NewMFORepository(db),
		satellite: inmemdb.NewSatelliteRepository(db),
	}

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	mfoSvc := mfo.NewService(r.mfo)

	// start CLI
	return &commandLine{
		usrSvc:       user.NewService(r.user),
		mfoSvc:       mfoSvc,
		satelliteSvc: satellite.NewService(satellite.Deps{Repo: r.satellite, MFOSvc: mfoSvc}),
		validate:     validate,
		translator:   translator,
		out:          new(bytes.Buffer),
	}, r
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "mfo_reviews", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, want an error")
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, r := setup(t)
	testutil.CreateUser(t, r.user, "Taken", "taken", "taken@test.ua", goodPwd, nil, true)

	tests := []struct {
		name     string
		args     []string
		pwd      string
		wantErr  error
		wantFlds []string // fields of the validation error
	}{
		{name: "no args", args: []string{"adduser"}, pwd: goodPwd, wantErr: errHelp},
		{name: "no username nor email", args: []string{"adduser", "-name", "Olena"}, pwd: goodPwd, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Olena", "-username", "olena"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-name", "Olena", "-username", "olena"}, pwd: "12345678", wantFlds: []string{"password"}},
		{name: "bad role", args: []string{"adduser", "-name", "Olena", "-username", "olena", "-roles", "boss:"}, pwd: goodPwd, wantFlds: []string{"roles"}},
		{name: "username taken", args: []string{"adduser", "-name", "Olena", "-username", "TAKEN"}, pwd: goodPwd, wantFlds: []string{"username"}},
		{name: "ok", args: []string{"adduser", "-name", "Olena", "-username", "Olena", "-email", "olena@test.ua", "-roles", "editor:"}, pwd: goodPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))

			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantFlds != nil:
				require.Error(t, err)
				for _, fld := range tt.wantFlds {
					assert.Contains(t, cli.describe(err), "  "+fld+": ")
				}
			default:
				require.NoError(t, err)
				usr, err := r.user.GetUserByUsernameOrEmail(context.Background(), "olena")
				require.NoError(t, err)
				assert.Equal(t, "olena@test.ua", usr.Email)
				assert.Equal(t, []string{"editor:"}, usr.Roles)
				assert.True(t, usr.IsActive)
				assert.NoError(t, usr.CheckPassword(goodPwd))
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, r := setup(t)

	usr := testutil.CreateUser(t, r.user, "User", "awe", "awe@test.ua", goodPwd, nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "N3w-Secret!"}, wantErr: user.ErrNotFound},
		{name: "password similar to email", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "Awe@test.ua1"}, wantErrStr: "password cannot be similar to user attributes"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "N3w-Secret!"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "An0ther-Secret?"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case err == nil:
				refreshedUsr, err := r.user.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				usr = refreshedUsr
			case tt.wantErrStr != "":
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %v", err, tt.wantErrStr)
				}
			case err != tt.wantErr:
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

const seedYAML = `
mfos:
  - name: Moneyveo
    slug: moneyveo
    website: https://moneyveo.ua
    rating: 4.5
    tags: [online, card]
  - name: CreditPlus
    slug: creditplus
    is_active: false
  - name: Existing
    slug: existing
satellite_keys:
  - key: kredit-online
    title_uk: Кредит онлайн
    title_ru: Кредит онлайн
    mfos: [moneyveo, existing]
  - key: kredit-na-kartu
    title_uk: Кредит на картку
    title_ru: Кредит на карту
    mfos: [creditplus]
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_commandLine_seed(t *testing.T) {
	ctx := context.Background()
	cli, r := setup(t)
	existing := testutil.CreateMFO(t, r.mfo, "Existing", "existing", true)
	old := testutil.CreateMFO(t, r.mfo, "Old", "old", true)
	testutil.CreateKey(t, r.satellite, "kredit-online", "Кредит онлайн", old.ID, existing.ID)

	assert.Equal(t, errHelp, cli.run([]string{"admin", "seed"}))

	path := writeSeedFile(t, seedYAML)
	require.NoError(t, cli.run([]string{"admin", "seed", "-file", path}))
	assert.Equal(t,
		"mfos: 2 created, 1 skipped\nsatellite keys: 1 created, 1 updated\n",
		cli.out.(*bytes.Buffer).String(),
	)

	mfos, err := r.mfo.QueryMFOs(ctx, nil, nil)
	require.NoError(t, err)
	bySlug := make(map[string]mfo.MFO, len(mfos))
	for _, m := range mfos {
		bySlug[m.Slug] = m
	}
	require.Len(t, bySlug, 4)
	assert.Equal(t, []string{"online", "card"}, bySlug["moneyveo"].Tags)
	assert.Equal(t, 4.5, bySlug["moneyveo"].Rating)
	assert.False(t, bySlug["creditplus"].IsActive)

	keys, err := r.satellite.QueryKeys(ctx, nil)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	byKey := map[string]satellite.Key{keys[0].Key: keys[0], keys[1].Key: keys[1]}
	assert.ElementsMatch(t, []int{bySlug["moneyveo"].ID, existing.ID}, byKey["kredit-online"].MFOIDs)
	assert.Equal(t, []int{bySlug["creditplus"].ID}, byKey["kredit-na-kartu"].MFOIDs)

	// seeding again changes nothing
	cli.out = new(bytes.Buffer)
	require.NoError(t, cli.run([]string{"admin", "seed", "-file", path}))
	assert.Equal(t,
		"mfos: 0 created, 3 skipped\nsatellite keys: 0 created, 0 updated\n",
		cli.out.(*bytes.Buffer).String(),
	)
}

func Test_commandLine_seedErrors(t *testing.T) {
	cli, _ := setup(t)

	err := cli.run([]string{"admin", "seed", "-file", writeSeedFile(t, "mfos: [")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")

	err = cli.run([]string{"admin", "seed", "-file", writeSeedFile(t, `
satellite_keys:
  - key: kredit
    title_uk: Кредит
    title_ru: Кредит
    mfos: [nope]
`)})
	assert.EqualError(t, err, `satellite key "kredit": unknown mfo "nope"`)

	err = cli.run([]string{"admin", "seed", "-file", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.True(t, os.IsNotExist(err))
}
