package sqlxrepos

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Status       null.String    `db:"status"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func packUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFrom(usr.IsActive),
		Status:       null.NewString(usr.Status, usr.Status != ""),
		Roles:        usr.Roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func unpackUser(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Bool,
		Status:       row.Status.String,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

type userRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db, ext: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		exclIDs = append(exclIDs, u.ID)
	}

	var existingUname, existingEmail bool
	err := repo.ext.QueryRowxContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM "user" WHERE username = $1 AND $1 <> '' AND id <> ALL($3)),
			EXISTS (SELECT 1 FROM "user" WHERE email = $2 AND $2 <> '' AND id <> ALL($3))`,
		username, email, pq.Array(exclIDs),
	).Scan(&existingUname, &existingEmail)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if existingUname {
		return user.ErrUsernameExists
	}
	if existingEmail {
		return user.ErrEmailExists
	}
	return nil
}

// CreateUser inserts the user together with its role-specific Teacher/Student
// record (derived from User.Roles) in one transaction.
func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := packUser(usr)

	err := atomic(ctx, repo.db, repo.ext, func(ext sqlx.ExtContext) error {
		if _, err := sqlx.NamedExecContext(ctx, ext, `
			INSERT INTO "user" (id, name, username, email, is_active, status, roles, password_hash, created_at, updated_at, last_login)
			VALUES (:id, :name, :username, :email, :is_active, :status, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
			row,
		); err != nil {
			switch violatedConstraint(err) {
			case "user_username_key":
				return user.ErrUsernameExists
			case "user_email_key":
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}

		if hasRolePrefix(usr.Roles, user.RoleTeacher) {
			if _, err := ext.ExecContext(ctx, `
				INSERT INTO teacher (id, user_id, created_at, updated_at)
				VALUES ($1, $2, now(), now())`,
				uuid.New().String(), usr.ID,
			); err != nil {
				return errors.Wrap(err, "inserting teacher")
			}
		} else if hasRolePrefix(usr.Roles, user.RoleStudent) {
			if _, err := ext.ExecContext(ctx, `
				INSERT INTO student (id, user_id, created_at, updated_at)
				VALUES ($1, $2, now(), now())`,
				uuid.New().String(), usr.ID,
			); err != nil {
				return errors.Wrap(err, "inserting student")
			}
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, `SELECT * FROM "user"`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return unpackUserSlice(rows), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return unpackUser(row), nil
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM "user" WHERE username = $1`, username); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by username")
	}
	return unpackUser(row), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM "user" WHERE email = $1`, email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return unpackUser(row), nil
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, repo.ext, &row,
		`SELECT * FROM "user" WHERE username = $1 OR email = $1`, username,
	); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return unpackUser(row), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT * FROM "user" WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		q += ` AND (name ILIKE ` + p + ` OR username ILIKE ` + p + ` OR email ILIKE ` + p + `)`
	}
	if len(filter.Roles) > 0 {
		prefixes := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			prefixes = append(prefixes, role+"%")
		}
		q += ` AND EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ANY(` + arg(pq.Array(prefixes)) + `))`
	}
	if filter.Status != "" {
		q += ` AND status = ` + arg(filter.Status)
	}
	if filter.IsActive != nil {
		q += ` AND is_active = ` + arg(*filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ` + arg(filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ` + arg(filter.CreatedTo.UTC())
	}

	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return unpackUserSlice(rows), nil
}

// UpdateUser only saves set fields; the current row is read and merged inside
// one transaction.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	var updated user.User
	err := atomic(ctx, repo.db, repo.ext, func(ext sqlx.ExtContext) error {
		var row userRow
		if err := sqlx.GetContext(ctx, ext, &row, `SELECT * FROM "user" WHERE id = $1 FOR UPDATE`, usr.ID); err != nil {
			return trapNoRowsErr(err, user.ErrNotFound, "finding user for update")
		}
		orig := unpackUser(row)

		if usr.Name != "" {
			orig.Name = usr.Name
		}
		if usr.Username != "" {
			orig.Username = usr.Username
		}
		if usr.Email != "" {
			orig.Email = usr.Email
		}
		if usr.Roles != nil {
			orig.Roles = usr.Roles
		}
		if usr.PasswordHash != nil {
			orig.PasswordHash = usr.PasswordHash
		}
		if usr.Status != "" {
			orig.Status = usr.Status
		}
		if isActive != nil {
			orig.IsActive = *isActive
		}
		if !usr.UpdatedAt.IsZero() {
			orig.UpdatedAt = usr.UpdatedAt
		}

		if _, err := sqlx.NamedExecContext(ctx, ext, `
			UPDATE "user"
			SET name = :name, username = :username, email = :email, is_active = :is_active,
			    status = :status, roles = :roles, password_hash = :password_hash, updated_at = :updated_at,
			    last_login = :last_login
			WHERE id = :id`,
			packUser(orig),
		); err != nil {
			switch violatedConstraint(err) {
			case "user_username_key":
				return user.ErrUsernameExists
			case "user_email_key":
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "updating user")
		}
		updated = orig
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if _, err := repo.ext.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func unpackUserSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, unpackUser(row))
	}
	return users
}

func hasRolePrefix(roles []string, prefix string) bool {
	for _, role := range roles {
		if len(role) >= len(prefix) && role[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
