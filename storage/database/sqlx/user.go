package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           int            `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        append([]string{}, r.Roles...),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t, !t.IsZero())
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make([]int, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var row userRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+userColumns+" FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3)) LIMIT 1",
		nullString(username), nullString(email), toInt64s(excluded),
	)
	if err != nil {
		return trapNoRowsErr(err, nil)
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.GetContext(ctx, &usr.ID, `
		INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		usr.Name, nullString(usr.Username), nullString(usr.Email), usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, uniqueUserErr(err)
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE username = $1 OR email = $1 LIMIT 1", username)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	var row userRow
	// only overwrite roles & password when set
	err := repo.db.GetContext(ctx, &row, `
		UPDATE users SET
			name = $2, username = $3, email = $4, is_active = $5,
			roles = COALESCE($6, roles), password_hash = COALESCE($7, password_hash),
			updated_at = $8, last_login = $9
		WHERE id = $1
		RETURNING `+userColumns,
		usr.ID, usr.Name, nullString(usr.Username), nullString(usr.Email), usr.IsActive,
		rolesParam(usr.Roles), hashParam(usr.PasswordHash), usr.UpdatedAt, nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, uniqueUserErr(trapNoRowsErr(err, user.ErrNotFound))
	}
	return row.toUser(), nil
}

// rolesParam binds nil roles as NULL.
func rolesParam(roles []string) interface{} {
	if roles == nil {
		return nil
	}
	return pq.Array(roles)
}

// hashParam binds a nil password hash as NULL.
func hashParam(hash []byte) interface{} {
	if hash == nil {
		return nil
	}
	return hash
}

func uniqueUserErr(err error) error {
	switch constraint, ok := uniqueConstraint(err); {
	case !ok:
		return err
	case constraint == "users_username_key":
		return user.ErrUsernameExists
	case constraint == "users_email_key":
		return user.ErrEmailExists
	default:
		return errors.Wrap(err, "saving user")
	}
}
