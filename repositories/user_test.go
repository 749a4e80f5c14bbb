package repositories

import (
	"chat-gen/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	// When creating an account
	userID, err := repo.CreateUser("alice@example.com", "$argon2id$fake-hash")
	req.NoError(err)
	req.NotEmpty(userID)

	// Then it can be loaded back by email
	user, err := repo.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(userID, user.ID)
	req.Equal("alice@example.com", user.Email)
	req.Equal("$argon2id$fake-hash", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)
}

func Test_Create_Duplicate_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.CreateUser("alice@example.com", "hash-1")
	req.NoError(err)

	// Registering the same email twice is a conflict
	_, err = repo.CreateUser("alice@example.com", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.GetUserByEmail("ghost@example.com")

	req.ErrorIs(err, errors.ErrNotFound)
}
