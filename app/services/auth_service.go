package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/repositories"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/auth"
	"github.com/shashiranjanraj/ferremas/pkg/cache"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/mail"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

const revokedPrefix = "revoked:"

type AuthService struct {
	db    *gorm.DB
	users *repositories.UserRepository
	mail  MailFunc
}

// MailFunc hands an e-mail to the outgoing queue.
type MailFunc func(ctx context.Context, msg mail.Message) error

// SetMailer installs the sender for password reset links.
func (s *AuthService) SetMailer(fn MailFunc) { s.mail = fn }

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db, users: repositories.NewUserRepository(db)}
}

type RegisterInput struct {
	Username             string `json:"username" validate:"required,alpha_dash,max=100"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8,confirmed"`
	PasswordConfirmation string `json:"password_confirmation"`
	FirstName            string `json:"first_name" validate:"max=150"`
	LastName             string `json:"last_name" validate:"max=150"`
	Address              string `json:"address" validate:"required"`
	Commune              string `json:"commune" validate:"required,max=100"`
	Phone                string `json:"phone" validate:"max=15"`
}

// Register creates a customer account with its profile.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	commune, err := requireCommune(ctx, s.db, in.Commune)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user := models.User{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Role:      models.RoleCustomer,
		Active:    true,
		Customer: &models.Customer{
			Address:   in.Address,
			Commune:   commune.Name,
			CommuneID: &commune.ID,
			Phone:     in.Phone,
		},
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return nil, duplicate(err)
	}

	event.FireAsync(ctx, EventUserRegistered, UserEvent{UserID: user.ID, Email: user.Email, Role: user.Role})
	return &user, nil
}

type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	auth.Pair
	User *models.User `json:"user"`
}

// Login checks credentials against username or email and issues a token
// pair scoped to the user's role and staff assignment.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.users.FindByLogin(ctx, in.Login)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.Password, in.Password) {
		LogActivity(ctx, s.db, &user.ID, "login_failed", "")
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}

	pair, err := auth.IssuePair(subjectOf(user))
	if err != nil {
		return nil, fmt.Errorf("auth: issue tokens: %w", err)
	}

	now := time.Now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		logger.WithCtx(ctx).Warn("auth: could not record login time", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now
	LogActivity(ctx, s.db, &user.ID, "login", "")

	return &Session{Pair: pair, User: &user}, nil
}

func subjectOf(u models.User) auth.Subject {
	sub := auth.Subject{UserID: u.ID, Role: u.Role}
	if u.Staff != nil {
		if u.Staff.BranchID != nil {
			sub.BranchID = *u.Staff.BranchID
		}
		if u.Staff.WarehouseID != nil {
			sub.WarehouseID = *u.Staff.WarehouseID
		}
	}
	return sub
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. Presenting a revoked token again fails.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (*Session, error) {
	claims, err := auth.ValidateRefresh(refresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if s.revoked(ctx, claims.ID) {
		logger.WithCtx(ctx).Warn("auth: revoked refresh token presented", "user_id", claims.UserID, "jti", claims.ID)
		return nil, ErrTokenRevoked
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}

	// The insert doubles as the reuse guard when two refreshes race.
	if err := s.revoke(ctx, claims); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	pair, err := auth.IssuePair(subjectOf(user))
	if err != nil {
		return nil, fmt.Errorf("auth: issue tokens: %w", err)
	}
	return &Session{Pair: pair, User: &user}, nil
}

// Logout revokes the refresh token. Revoking twice is not an error.
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	claims, err := auth.ValidateRefresh(refresh)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.revoke(ctx, claims); err != nil && !errors.Is(err, ErrConflict) {
		return err
	}
	LogActivity(ctx, s.db, &claims.UserID, "logout", "")
	return nil
}

func (s *AuthService) revoke(ctx context.Context, c *auth.Claims) error {
	exp := time.Now().Add(time.Hour)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	row := models.RevokedToken{JTI: c.ID, UserID: c.UserID, ExpiresAt: exp}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duplicate(err)
	}
	if ttl := time.Until(exp); ttl > 0 {
		_ = cache.Set(ctx, revokedPrefix+c.ID, true, ttl)
	}
	return nil
}

// revoked checks Redis first, then the table.
func (s *AuthService) revoked(ctx context.Context, jti string) bool {
	var hit bool
	if cache.Get(ctx, revokedPrefix+jti, &hit) && hit {
		return true
	}
	var n int64
	s.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&n)
	return n > 0
}

// PruneRevoked drops revocations whose tokens have expired on their own.
func (s *AuthService) PruneRevoked(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

type CreateStaffInput struct {
	Username    string `json:"username" validate:"required,alpha_dash,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	Role        string `json:"role" validate:"required,in=admin,seller,warehouse,accountant"`
	RUT         string `json:"rut" validate:"required,rut"`
	BranchID    uint   `json:"branch_id"`
	WarehouseID uint   `json:"warehouse_id"`
}

// CreateStaff adds an employee. A warehouse assignment must belong to the
// assigned branch. The account is flagged to change its password.
func (s *AuthService) CreateStaff(ctx context.Context, actor Actor, in CreateStaffInput) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff := models.Staff{RUT: normalizeRUT(in.RUT)}
		var err error
		if staff.BranchID, staff.WarehouseID, err = staffScope(tx, in.BranchID, in.WarehouseID); err != nil {
			return err
		}

		user = models.User{
			Username:              strings.TrimSpace(in.Username),
			Email:                 strings.ToLower(strings.TrimSpace(in.Email)),
			FirstName:             in.FirstName,
			LastName:              in.LastName,
			Password:              hash,
			Role:                  in.Role,
			Active:                true,
			PasswordChangePending: true,
			Staff:                 &staff,
		}
		return duplicate(s.users.WithTx(tx).Create(ctx, &user))
	})
	if err != nil {
		return nil, err
	}

	LogActivity(ctx, s.db, actor.userPtr(), "staff_created", fmt.Sprintf("user %d role %s", user.ID, user.Role))
	event.FireAsync(ctx, EventUserRegistered, UserEvent{UserID: user.ID, Email: user.Email, Role: user.Role})
	return &user, nil
}

// staffScope checks a branch and warehouse assignment; 0 means none. A
// warehouse must belong to the branch.
func staffScope(tx *gorm.DB, branchID, warehouseID uint) (*uint, *uint, error) {
	var branch, warehouse *uint
	if branchID != 0 {
		var b models.Branch
		if err := tx.First(&b, branchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrUnknownBranch
			}
			return nil, nil, err
		}
		branch = &b.ID
	}
	if warehouseID != 0 {
		var wh models.Warehouse
		if err := tx.First(&wh, warehouseID).Error; err != nil {
			return nil, nil, notFound(err)
		}
		if branch == nil || wh.BranchID != *branch {
			return nil, nil, fmt.Errorf("%w: warehouse %d is not in branch %d", ErrInvalidInput, wh.ID, branchID)
		}
		warehouse = &wh.ID
	}
	return branch, warehouse, nil
}

func normalizeRUT(s string) string {
	return strings.ToUpper(strings.NewReplacer(".", "", " ", "").Replace(s))
}

func (s *AuthService) ListUsers(ctx context.Context, role string, page, limit int) ([]models.User, orm.Pagination, error) {
	return s.users.All(ctx, role, page, limit)
}

// SetActive enables or disables a login. Admins cannot disable themselves.
func (s *AuthService) SetActive(ctx context.Context, actor Actor, userID uint, active bool) error {
	if !active && actor.UserID == userID {
		return fmt.Errorf("%w: cannot deactivate your own account", ErrInvalidInput)
	}
	n, err := s.users.SetActive(ctx, userID, active)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	action := "user_disabled"
	if active {
		action = "user_enabled"
	}
	LogActivity(ctx, s.db, actor.userPtr(), action, fmt.Sprintf("user %d", userID))
	return nil
}

// LogActivity appends to the audit trail. Failures are logged and dropped.
func LogActivity(ctx context.Context, db *gorm.DB, userID *uint, action, detail string) {
	row := models.ActivityLog{UserID: userID, Action: action, Detail: detail}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.WithCtx(ctx).Warn("activity: write failed", "action", action, "error", err)
	}
}

func (s *AuthService) Activity(ctx context.Context, userID uint, page, limit int) ([]models.ActivityLog, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.ActivityLog{}).Order("id DESC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var rows []models.ActivityLog
	p, err := orm.Paginate(q, page, limit, &rows)
	return rows, p, err
}

// RequestPasswordReset mails a signed reset link to the account behind
// email. Unknown and inactive addresses return nil without sending.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.mail == nil {
		return errors.New("auth: no mailer for password reset")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithCtx(ctx).Info("auth: password reset for unknown address")
		return nil
	}
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}

	token, exp, err := auth.IssueReset(user.ID, user.Password)
	if err != nil {
		return fmt.Errorf("auth: issue reset token: %w", err)
	}
	link := config.FrontendURL() + config.Get("PASSWORD_RESET_PATH", "/reset-password") + "?token=" + url.QueryEscape(token)
	err = s.mail(ctx, mail.Message{
		To:       user.Email,
		Subject:  "Restablece tu contraseña",
		Template: "password_reset",
		Data: map[string]any{
			"name":    user.FullName(),
			"url":     link,
			"expires": exp.Format("02-01-2006 15:04"),
		},
	})
	if err != nil {
		return fmt.Errorf("auth: queue reset mail: %w", err)
	}
	LogActivity(ctx, s.db, &user.ID, "password_reset_requested", "")
	return nil
}

type PasswordResetInput struct {
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,confirmed"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ConfirmPasswordReset sets a new password with a token from
// RequestPasswordReset. A token works once: the password it was bound to
// is gone after the first use.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in PasswordResetInput) error {
	claims, err := auth.ValidateReset(in.Token)
	if err != nil {
		return ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if !claims.BoundTo(user.Password) {
		return ErrInvalidToken
	}
	if !user.Active {
		return ErrInactiveUser
	}

	changed, err := s.setPassword(ctx, user, in.Password)
	if err != nil {
		return err
	}
	if !changed {
		return ErrInvalidToken
	}
	LogActivity(ctx, s.db, &user.ID, "password_reset", "")
	return nil
}

type ChangePasswordInput struct {
	CurrentPassword      string `json:"current_password" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,confirmed"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ChangePassword replaces the actor's password after checking the current
// one, and clears the forced-change flag set on new staff accounts.
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, in ChangePasswordInput) error {
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return notFound(err)
	}
	if !auth.CheckPassword(user.Password, in.CurrentPassword) {
		LogActivity(ctx, s.db, &user.ID, "password_change_failed", "")
		return fmt.Errorf("%w: current password is incorrect", ErrInvalidInput)
	}
	if in.Password == in.CurrentPassword {
		return fmt.Errorf("%w: the new password must differ from the current one", ErrInvalidInput)
	}

	changed, err := s.setPassword(ctx, user, in.Password)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: password changed concurrently", ErrConflict)
	}
	LogActivity(ctx, s.db, &user.ID, "password_changed", "")
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user models.User, plain string) (bool, error) {
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return false, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.users.SetPassword(ctx, user.ID, user.Password, hash)
}

// ProfileInput changes only the fields that are present.
type ProfileInput struct {
	FirstName *string `json:"first_name" validate:"nullable,max=150"`
	LastName  *string `json:"last_name" validate:"nullable,max=150"`
	Email     *string `json:"email" validate:"nullable,required,email,max=255"`
	Address   *string `json:"address" validate:"nullable,required"`
	Phone     *string `json:"phone" validate:"nullable,max=15"`
	Commune   *string `json:"commune" validate:"nullable,required,max=100"`
}

// UpdateProfile edits the actor's own names, e-mail and, for customers,
// the delivery profile.
func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, in ProfileInput) (*models.User, error) {
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound(err)
	}

	account := accountChanges(in.FirstName, in.LastName, in.Email)
	profile := map[string]interface{}{}
	if in.Address != nil {
		profile["address"] = *in.Address
	}
	if in.Phone != nil {
		profile["phone"] = *in.Phone
	}
	if in.Commune != nil {
		commune, err := requireCommune(ctx, s.db, *in.Commune)
		if err != nil {
			return nil, err
		}
		profile["commune"], profile["commune_id"] = commune.Name, commune.ID
	}
	if len(profile) > 0 && user.Customer == nil {
		return nil, ErrCustomerProfile
	}
	if len(account) == 0 && len(profile) == 0 {
		return &user, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(account) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(account).Error; err != nil {
				return duplicate(err)
			}
		}
		if len(profile) > 0 {
			return tx.Model(&models.Customer{}).Where("user_id = ?", user.ID).Updates(profile).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	LogActivity(ctx, s.db, &user.ID, "profile_updated", changedFields(account, profile))
	return s.Me(ctx, user.ID)
}

// UpdateUserInput changes only the fields that are present. A zero branch
// or warehouse id clears the assignment.
type UpdateUserInput struct {
	FirstName   *string `json:"first_name" validate:"nullable,max=150"`
	LastName    *string `json:"last_name" validate:"nullable,max=150"`
	Email       *string `json:"email" validate:"nullable,required,email,max=255"`
	Role        *string `json:"role" validate:"nullable,in=admin,seller,warehouse,accountant"`
	Active      *bool   `json:"active"`
	BranchID    *uint   `json:"branch_id"`
	WarehouseID *uint   `json:"warehouse_id"`
}

// UpdateUser is the admin edit of any account. Roles move only between
// staff roles, and admins cannot demote or disable themselves.
func (s *AuthService) UpdateUser(ctx context.Context, actor Actor, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	self := actor.UserID == user.ID
	staffOnly := in.Role != nil || in.BranchID != nil || in.WarehouseID != nil
	if staffOnly && user.Staff == nil {
		return nil, fmt.Errorf("%w: user %d is not staff", ErrInvalidInput, id)
	}
	if self && in.Role != nil && *in.Role != user.Role {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrInvalidInput)
	}
	if self && in.Active != nil && !*in.Active {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", ErrInvalidInput)
	}

	account := accountChanges(in.FirstName, in.LastName, in.Email)
	if in.Role != nil {
		account["role"] = *in.Role
	}
	if in.Active != nil {
		account["active"] = *in.Active
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(account) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(account).Error; err != nil {
				return duplicate(err)
			}
		}
		if in.BranchID == nil && in.WarehouseID == nil {
			return nil
		}
		branchID, warehouseID := derefOr(user.Staff.BranchID), derefOr(user.Staff.WarehouseID)
		if in.BranchID != nil {
			branchID = *in.BranchID
		}
		if in.WarehouseID != nil {
			warehouseID = *in.WarehouseID
		}
		branch, warehouse, err := staffScope(tx, branchID, warehouseID)
		if err != nil {
			return err
		}
		return tx.Model(&models.Staff{}).Where("user_id = ?", user.ID).
			Updates(map[string]interface{}{"branch_id": branch, "warehouse_id": warehouse}).Error
	})
	if err != nil {
		return nil, err
	}

	fields := changedFields(account)
	if in.BranchID != nil || in.WarehouseID != nil {
		fields = strings.TrimPrefix(fields+",staff_scope", ",")
	}
	LogActivity(ctx, s.db, actor.userPtr(), "user_updated", fmt.Sprintf("user %d: %s", user.ID, fields))
	return s.Me(ctx, user.ID)
}

func accountChanges(first, last, email *string) map[string]interface{} {
	out := map[string]interface{}{}
	if first != nil {
		out["first_name"] = strings.TrimSpace(*first)
	}
	if last != nil {
		out["last_name"] = strings.TrimSpace(*last)
	}
	if email != nil {
		out["email"] = strings.ToLower(strings.TrimSpace(*email))
	}
	return out
}

// changedFields lists the keys of the update maps, sorted.
func changedFields(maps ...map[string]interface{}) string {
	var keys []string
	for _, m := range maps {
		for k := range m {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return strings.Join(keys, ",")
}

func derefOr(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}
