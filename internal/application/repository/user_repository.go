package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Grey-kingreys/gestion-contact-back/internal/domain"
)

// UserRepository is the identity collaborator seen by the chat core. User
// records are written elsewhere; the core only resolves ids.
type UserRepository interface {
	// ResolveUser returns (nil, nil) when the id does not resolve.
	ResolveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) ResolveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "userRepo.ResolveUser")
	}
	return &user, nil
}
