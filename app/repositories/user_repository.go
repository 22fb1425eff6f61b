// Package repositories wraps the gorm queries services share. Every
// repository is bound to a *gorm.DB, so passing a transaction handle yields
// a repository scoped to that transaction.
package repositories

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

// UserRepository handles database operations for User and its profiles.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// FindByLogin looks a user up by username or email, case-insensitively.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("LOWER(username) = ? OR LOWER(email) = ?", login, login).
		First(&user).Error
	return user, err
}

// FindByEmail matches the address case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	return user, err
}

// FindByID loads a user with both profiles.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Staff").
		First(&user, id).Error
	return user, err
}

// Create persists a new user record together with any profile set on it.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_login_at", at).Error
}

// SetPassword replaces the hash only while current is still stored, and
// clears the forced-change flag. It reports whether a row changed.
func (r *UserRepository) SetPassword(ctx context.Context, id uint, current, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password = ?", id, current).
		Updates(map[string]interface{}{"password": hash, "password_change_pending": false})
	return res.RowsAffected > 0, res.Error
}

func (r *UserRepository) SetActive(ctx context.Context, id uint, active bool) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("active", active)
	return res.RowsAffected, res.Error
}

// All returns users, optionally of one role, newest first.
func (r *UserRepository) All(ctx context.Context, role string, page, limit int) ([]models.User, orm.Pagination, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Order("id DESC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	p, err := orm.Paginate(q, page, limit, &users, "Staff")
	return users, p, err
}

// CustomerEmails returns the addresses of every active customer.
func (r *UserRepository) CustomerEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND active = ?", models.RoleCustomer, true).
		Order("id").
		Pluck("email", &emails).Error
	return emails, err
}
