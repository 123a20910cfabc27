package bank

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Directory creates and authenticates users.
type Directory struct {
	Store  Store
	Alloc  *Allocator
	Now    func() time.Time
	Logger *zap.Logger
}

// NewDirectory returns a Directory that allocates ids through alloc.
func NewDirectory(store Store, alloc *Allocator) *Directory {
	return &Directory{Store: store, Alloc: alloc, Now: time.Now, Logger: zap.NewNop()}
}

// CreateUser validates the fields, claims a fresh user id and stores the
// user as active. Customers never carry a designation.
func (d *Directory) CreateUser(ctx context.Context, first, last string, kind UserKind, designation string) (UserID, error) {
	d.Logger.Debug("open create user")
	defer d.Logger.Debug("close create user")

	first, last, designation = strings.TrimSpace(first), strings.TrimSpace(last), strings.TrimSpace(designation)

	switch {
	case first == "":
		return 0, invalid("first_name", ErrEmptyField)
	case last == "":
		return 0, invalid("last_name", ErrEmptyField)
	case !kind.Valid():
		return 0, invalid("kind", ErrInvalidKind)
	case kind == KindEmployee && designation == "":
		return 0, invalid("designation", ErrMissingDesignation)
	}
	if kind == KindCustomer {
		designation = ""
	}

	created := d.Now().UTC().Truncate(time.Second)
	id, err := d.Alloc.Claim(ctx, UserSpace, func(ctx context.Context, id uint32) (int64, error) {
		return d.Store.InsertUser(ctx, User{
			ID:          UserID(id),
			Kind:        kind,
			FirstName:   first,
			LastName:    last,
			Designation: designation,
			Status:      StatusActive,
			CreatedAt:   created,
		})
	})
	if err != nil {
		return 0, err
	}

	d.Logger.Info("user created", zap.Uint32("user_id", id), zap.Stringer("kind", kind))
	return UserID(id), nil
}

// Authenticate succeeds iff exactly one active user matches id, kind and
// first name (case-insensitive). It is a presence check, not a credential.
func (d *Directory) Authenticate(ctx context.Context, id UserID, kind UserKind, first string) error {
	d.Logger.Debug("open authenticate", zap.Uint32("user_id", uint32(id)))
	defer d.Logger.Debug("close authenticate", zap.Uint32("user_id", uint32(id)))

	first = strings.TrimSpace(first)
	switch {
	case id == 0:
		return invalid("user_id", ErrEmptyField)
	case first == "":
		return invalid("first_name", ErrEmptyField)
	case !kind.Valid():
		return invalid("kind", ErrInvalidKind)
	}

	users, err := d.Store.FindUsers(ctx, UserFilter{
		ID:        id,
		FirstName: first,
		Kind:      kind,
		Status:    StatusActive,
	})
	if err != nil {
		return storeErr("find users", err)
	}
	if len(users) != 1 {
		return ErrNotFound
	}
	return nil
}

// Get returns the user with the given id regardless of status.
func (d *Directory) Get(ctx context.Context, id UserID) (User, error) {
	users, err := d.Store.FindUsers(ctx, UserFilter{ID: id})
	if err != nil {
		return User{}, storeErr("find users", err)
	}
	if len(users) != 1 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}
