// Package store persists user accounts and room metadata in a
// document store.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash []byte    `bson:"passwordHash" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

type Room struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedBy string    `bson:"createdBy" json:"createdBy"`
	Members   []string  `bson:"members" json:"members"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Store is the room directory. The gateway depends on this interface
// so handlers can be tested without a live database.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UsersByID(ctx context.Context, ids []string) (map[string]User, error)
	CreateRoom(ctx context.Context, r Room) error
	ListRooms(ctx context.Context) ([]Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
}
