package database

import (
	"context"
	"time"
)

// DefaultKey is the storage key of the board document.
const DefaultKey = "kanban-data"

// UserKey scopes the board document to one user.
func UserKey(base, email string) string {
	return base + ":" + email
}

type User struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backend is a key/value store for raw documents.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
