package service

import (
	"context"
	"errors"

	"conversation-service/model"

	"gorm.io/gorm"
)

// Directory is the boundary to the identity service. Implementations resolve
// a user id to its current identity; the registry queries it at conversation
// creation time and the message log compares against it for lazy snapshot
// refresh.
type Directory interface {
	Resolve(ctx context.Context, id uint) (*model.User, error)
}

// UserDirectory resolves identities from the locally projected users table,
// which the identity event listener keeps current.
type UserDirectory struct {
	DB *gorm.DB
}

func (d *UserDirectory) Resolve(ctx context.Context, id uint) (*model.User, error) {
	user := new(model.User)
	if err := d.DB.WithContext(ctx).First(user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, transient("resolve user", err)
	}
	return user, nil
}
