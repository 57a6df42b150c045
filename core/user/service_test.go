package user

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	emailsvc "github.com/trezcool/shule/services/email"
)

type fakeRepo struct {
	seq   int
	users map[string]User
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]User)}
}

func (repo *fakeRepo) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error {
	excluded := func(usr User) bool {
		for _, ex := range excludedUsers {
			if ex.ID == usr.ID {
				return true
			}
		}
		return false
	}
	for _, usr := range repo.users {
		if excluded(usr) {
			continue
		}
		if username != "" && usr.Username == username {
			return ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return ErrEmailExists
		}
	}
	return nil
}

func (repo *fakeRepo) CreateUser(ctx context.Context, usr User) (User, error) {
	repo.seq++
	usr.ID = strconv.Itoa(repo.seq)
	repo.users[usr.ID] = usr
	return usr, nil
}

func (repo *fakeRepo) QueryAllUsers(ctx context.Context) ([]User, error) {
	all := make([]User, 0, len(repo.users))
	for _, usr := range repo.users {
		all = append(all, usr)
	}
	return all, nil
}

func (repo *fakeRepo) GetUserByID(ctx context.Context, id string) (User, error) {
	usr, ok := repo.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (repo *fakeRepo) GetUserByUsername(ctx context.Context, username string) (User, error) {
	for _, usr := range repo.users {
		if usr.Username == username {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (repo *fakeRepo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, usr := range repo.users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (repo *fakeRepo) GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error) {
	for _, usr := range repo.users {
		if usr.Username == username || usr.Email == username {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (repo *fakeRepo) FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error) {
	matches := make([]User, 0)
	for _, usr := range repo.users {
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(usr.Name), search) &&
				!strings.Contains(strings.ToLower(usr.Username), search) &&
				!strings.Contains(strings.ToLower(usr.Email), search) {
				continue
			}
		}
		if filter.Status != "" && usr.Status != filter.Status {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		matches = append(matches, usr)
	}
	return matches, nil
}

func (repo *fakeRepo) UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error) {
	orig, ok := repo.users[usr.ID]
	if !ok {
		return User{}, ErrNotFound
	}
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
	repo.users[usr.ID] = orig
	return orig, nil
}

func (repo *fakeRepo) DeleteUsersByID(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		delete(repo.users, id)
	}
	return nil
}

func newTestService(repo Repository) Service {
	return NewServiceMock(repo, emailsvc.NewConsoleServiceMock())
}

func TestServiceRegister(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo)

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Register(ctx, NewUser{})
		assert.Error(t, err)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := svc.Register(ctx, NewUser{
			Name: "Weak", Username: "weakling", Email: "weak@test.cd",
			Password: "password", PasswordConfirm: "password",
		})
		assert.Error(t, err)
	})

	t.Run("defaults to pending student", func(t *testing.T) {
		usr, err := svc.Register(ctx, NewUser{
			Name: "Stud", Username: "student1", Email: "stud@test.cd",
			Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
		})
		assert.NoError(t, err)
		assert.Equal(t, StatusPending, usr.Status)
		assert.Equal(t, StudentRoles, usr.Roles)
		assert.True(t, usr.IsStudent())
		assert.False(t, usr.IsApproved())
		assert.NoError(t, usr.CheckPassword("g00d#Pwd!zZ"))
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, NewUser{
			Name: "Copycat", Username: "student1", Email: "cat@test.cd",
			Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
		})
		assert.Error(t, err)
	})

	t.Run("teacher role kept", func(t *testing.T) {
		usr, err := svc.Register(ctx, NewUser{
			Name: "Teach", Username: "teacher1", Email: "teach@test.cd",
			Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
			Roles: TeacherRoles,
		})
		assert.NoError(t, err)
		assert.True(t, usr.IsTeacher())
	})
}

func TestServiceApproveReject(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo)

	usr, err := svc.Register(ctx, NewUser{
		Name: "Pending", Username: "pending1", Email: "pending@test.cd",
		Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
	})
	assert.NoError(t, err)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Approve(ctx, "ghost")
		assert.Equal(t, ErrNotFound, err)
	})

	t.Run("approve", func(t *testing.T) {
		approved, err := svc.Approve(ctx, usr.ID)
		assert.NoError(t, err)
		assert.Equal(t, StatusApproved, approved.Status)
		assert.True(t, approved.IsActive)
	})

	t.Run("approve is idempotent", func(t *testing.T) {
		again, err := svc.Approve(ctx, usr.ID)
		assert.NoError(t, err)
		assert.Equal(t, StatusApproved, again.Status)
	})

	t.Run("reject deactivates", func(t *testing.T) {
		rejected, err := svc.Reject(ctx, usr.ID)
		assert.NoError(t, err)
		assert.Equal(t, StatusRejected, rejected.Status)
		assert.False(t, rejected.IsActive)
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo)

	usr, err := svc.Register(ctx, NewUser{
		Name: "Orig", Username: "origuser", Email: "orig@test.cd",
		Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
	})
	assert.NoError(t, err)
	other, err := svc.Register(ctx, NewUser{
		Name: "Other", Username: "otheruser", Email: "other@test.cd",
		Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
	})
	assert.NoError(t, err)

	t.Run("taken username rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, usr.ID, UpdateUser{Username: other.Username})
		assert.Error(t, err)
	})

	t.Run("keeping own username is fine", func(t *testing.T) {
		updated, err := svc.Update(ctx, usr.ID, UpdateUser{Name: "Renamed"})
		assert.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, usr.Username, updated.Username)
	})
}

func TestServicePasswordReset(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo)

	usr, err := svc.Register(ctx, NewUser{
		Name: "Reset", Username: "resetme", Email: "reset@test.cd",
		Password: "g00d#Pwd!zZ", PasswordConfirm: "g00d#Pwd!zZ",
	})
	assert.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		assert.Equal(t, ErrNotFound, svc.RequestPasswordReset(ctx, "ghost@test.cd"))
	})

	t.Run("request sends mail", func(t *testing.T) {
		assert.NoError(t, svc.RequestPasswordReset(ctx, usr.Email))
	})

	t.Run("full reset flow", func(t *testing.T) {
		token, err := MakeToken(usr)
		assert.NoError(t, err)

		err = svc.ResetPassword(ctx, ResetUserPassword{
			UID:             EncodeUID(usr),
			Token:           token,
			Password:        "n3w#Pwd!zZ",
			PasswordConfirm: "n3w#Pwd!zZ",
		})
		assert.NoError(t, err)

		refreshed, err := repo.GetUserByID(ctx, usr.ID)
		assert.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword("n3w#Pwd!zZ"))
		assert.Error(t, refreshed.CheckPassword("g00d#Pwd!zZ"))
	})

	t.Run("stale token rejected", func(t *testing.T) {
		// the token was derived from the old password hash
		staleToken, err := MakeToken(usr)
		assert.NoError(t, err)
		refreshed, _ := repo.GetUserByID(ctx, usr.ID)
		assert.Equal(t, errInvalidToken, verifyToken(refreshed, staleToken))
	})

	t.Run("garbage uid rejected", func(t *testing.T) {
		err := svc.ResetPassword(ctx, ResetUserPassword{
			UID: "???", Token: "nonsense",
			Password: "n3w#Pwd!zZ", PasswordConfirm: "n3w#Pwd!zZ",
		})
		assert.Equal(t, errInvalidToken, err)
	})
}

func TestUserRoles(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name                          string
		roles                         []string
		isAdmin, isTeacher, isStudent bool
	}{
		{name: "admin", roles: AdminRoles, isAdmin: true},
		{name: "teacher", roles: TeacherRoles, isTeacher: true},
		{name: "student", roles: StudentRoles, isStudent: true},
		{name: "none", roles: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Roles: tt.roles, CreatedAt: now}
			assert.Equal(t, tt.isAdmin, usr.IsAdmin())
			assert.Equal(t, tt.isTeacher, usr.IsTeacher())
			assert.Equal(t, tt.isStudent, usr.IsStudent())
		})
	}
}
