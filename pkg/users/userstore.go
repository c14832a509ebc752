// FILE: users/store.go

package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a user id is not present in a store.
var ErrNotFound = errors.New("user not found")

// Store is the ordered, deduplicated list of fetched users.
//
// Append must keep arrival order and skip any user whose id is already
// present, including repeats inside the same call. It reports how many
// users were actually added.
type Store interface {
	Append(ctx context.Context, list []User) (int, error)
	Remove(ctx context.Context, ids []string) (int, error)
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
}
