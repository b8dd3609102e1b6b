package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRow is the persisted shape of a user.
type userRow struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `gorm:"column:password;size:255;not null"`
	Name         string    `gorm:"size:255;not null"`
	Role         user.Role `gorm:"size:16;not null;default:'USER'"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string {
	return "users"
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Name:         r.Name,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// publicRow is the listing projection; the password column is never selected.
type publicRow struct {
	ID        string
	Email     string
	Name      string
	Role      user.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

var publicColumns = []string{"id", "email", "name", "role", "created_at", "updated_at"}

// Observer times a logical DB operation. *observability.Prom satisfies it.
type Observer interface {
	ObserveDB(op string, fn func() error) error
}

type UsersRepo struct {
	db  *gorm.DB
	obs Observer
}

func NewUsersRepo(db *gorm.DB, obs Observer) *UsersRepo {
	return &UsersRepo{db: db, obs: obs}
}

// AutoMigrate creates or updates the users table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{})
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.obs == nil {
		return fn()
	}
	return r.obs.ObserveDB(op, fn)
}

func (r *UsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = user.RoleUser
	}

	now := time.Now().UTC()
	row := userRow{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = r.observe("users.create", func() error {
		return r.db.WithContext(ctx).Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	return row.toDomain(), nil
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, bool, error) {
	return r.findOne(ctx, "users.find_by_email", "email = ?", email)
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, bool, error) {
	return r.findOne(ctx, "users.find_by_id", "id = ?", id)
}

func (r *UsersRepo) findOne(ctx context.Context, op, cond string, arg any) (user.User, bool, error) {
	var row userRow

	err := r.observe(op, func() error {
		return r.db.WithContext(ctx).Where(cond, arg).Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, false, nil
		}
		return user.User{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return row.toDomain(), true, nil
}

// Update writes only the supplied fields. The caller checks existence first;
// a missing row still surfaces as user.ErrNotFound.
func (r *UsersRepo) Update(ctx context.Context, id string, in user.UpdateInput) (user.User, error) {
	if in.Empty() {
		u, ok, err := r.FindByID(ctx, id)
		if err != nil {
			return user.User{}, err
		}
		if !ok {
			return user.User{}, user.ErrNotFound
		}
		return u, nil
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if in.Email != nil {
		fields["email"] = *in.Email
	}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Role != nil {
		fields["role"] = *in.Role
	}

	var row userRow
	err := r.observe("users.update", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&userRow{}).Where("id = ?", id).Updates(fields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return user.ErrNotFound
			}
			return tx.Where("id = ?", id).Take(&row).Error
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			return user.User{}, user.ErrNotFound
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}

	return row.toDomain(), nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.observe("users.delete", func() error {
		res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&userRow{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) FindAll(ctx context.Context, f user.ListFilter) ([]user.Public, int64, error) {
	var (
		rows  []publicRow
		total int64
	)

	err := r.observe("users.find_all", func() error {
		err := r.db.WithContext(ctx).
			Model(&userRow{}).
			Scopes(matchNameOrEmail(f.Search)).
			Count(&total).Error
		if err != nil {
			return err
		}

		return r.db.WithContext(ctx).
			Model(&userRow{}).
			Scopes(matchNameOrEmail(f.Search)).
			Select(publicColumns).
			Order("created_at DESC").
			Order("id DESC").
			Offset(f.Offset()).
			Limit(f.Limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	out := make([]user.Public, 0, len(rows))
	for _, row := range rows {
		out = append(out, user.Public{
			ID:        row.ID,
			Email:     row.Email,
			Name:      row.Name,
			Role:      row.Role,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, total, nil
}

func (r *UsersRepo) VerifyPassword(plain, hash string) bool {
	return security.PasswordMatches(plain, hash)
}

// Ping checks the underlying connection for readiness probes.
func (r *UsersRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// matchNameOrEmail is a case-insensitive substring filter. LOWER/LIKE keeps
// it portable across Postgres and SQLite.
func matchNameOrEmail(search string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		search = strings.TrimSpace(search)
		if search == "" {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		return db.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
