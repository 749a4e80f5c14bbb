//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-gen/errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-level representation of an account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

type diskUser struct {
	ID           string   `msgpack:"id"`
	Email        string   `msgpack:"email"`
	PasswordHash string   `msgpack:"password_hash"`
	Roles        []string `msgpack:"roles"`
	CreatedAt    int64    `msgpack:"created_at"`
}

// CreateUser persists a new account keyed by email and returns the
// generated user ID. The password must already be hashed.
func (u UserRepository) CreateUser(email, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	data, err := msgpack.Marshal(diskUser{
		ID:           newID,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := []byte("user:" + email)
		if _, err = txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})

	return newID, err
}

// GetUserByEmail loads an account, mapping a missing key to ErrNotFound.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var disk diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	return User{
		ID:           disk.ID,
		Email:        disk.Email,
		PasswordHash: disk.PasswordHash,
		Roles:        disk.Roles,
		CreatedAt:    time.Unix(disk.CreatedAt, 0).UTC(),
	}, nil
}
