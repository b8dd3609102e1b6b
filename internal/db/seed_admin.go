package db

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
)

type AdminSeeder interface {
	FindByEmail(ctx context.Context, email string) (user.User, bool, error)
	Create(ctx context.Context, in user.CreateInput) (user.User, error)
}

// EnsureAdminUser creates the configured ADMIN account when it does not exist
// yet. Without ADMIN_EMAIL/ADMIN_PASSWORD it does nothing.
func EnsureAdminUser(ctx context.Context, users AdminSeeder, cfg config.Config) (created bool, err error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	// check if the user exists

	_, exists, err := users.FindByEmail(ctx, cfg.AdminEmail)

	if err != nil {
		return false, err
	}

	if exists {
		return false, nil
	}

	_, err = users.Create(ctx, user.CreateInput{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
		Role:     user.RoleAdmin,
	})

	// another instance won the race
	if errors.Is(err, user.ErrEmailTaken) {
		return false, nil
	}

	return err == nil, err
}
