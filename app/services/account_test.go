package services_test

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/database/testdb"
	"github.com/shashiranjanraj/ferremas/pkg/mail"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) send(_ context.Context, m mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

func (o *outbox) messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.sent...)
}

func resetToken(t *testing.T, m mail.Message) string {
	t.Helper()
	link, ok := m.Data["url"].(string)
	require.True(t, ok)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func ptr[T any](v T) *T { return &v }

func TestPasswordResetFlow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	box := &outbox{}
	e.svc.Auth.SetMailer(box.send)

	require.NoError(t, e.svc.Auth.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, box.messages(), "unknown addresses get no mail")

	require.NoError(t, e.svc.Auth.RequestPasswordReset(ctx, " MARIA@example.com"))
	sent := box.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "maria@example.com", sent[0].To)
	assert.Equal(t, "password_reset", sent[0].Template)
	token := resetToken(t, sent[0])
	require.NotEmpty(t, token)

	err := e.svc.Auth.ConfirmPasswordReset(ctx, services.PasswordResetInput{Token: "garbage", Password: "brand-new-1"})
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	require.NoError(t, e.svc.Auth.ConfirmPasswordReset(ctx, services.PasswordResetInput{
		Token: token, Password: "brand-new-1", PasswordConfirmation: "brand-new-1",
	}))

	_, err = e.svc.Auth.Login(ctx, services.LoginInput{Login: "maria", Password: testdb.Password})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = e.svc.Auth.Login(ctx, services.LoginInput{Login: "maria", Password: "brand-new-1"})
	require.NoError(t, err)

	err = e.svc.Auth.ConfirmPasswordReset(ctx, services.PasswordResetInput{Token: token, Password: "another-one-2"})
	assert.ErrorIs(t, err, services.ErrInvalidToken, "a token works once")

	var n int64
	e.db.Model(&models.ActivityLog{}).Where("action = ? AND user_id = ?", "password_reset", e.fx.Customer.ID).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestPasswordResetSkipsInactiveAndNeedsMailer(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	assert.Error(t, e.svc.Auth.RequestPasswordReset(ctx, "maria@example.com"))

	box := &outbox{}
	e.svc.Auth.SetMailer(box.send)
	require.NoError(t, e.svc.Auth.RequestPasswordReset(ctx, "maria@example.com"))
	token := resetToken(t, box.messages()[0])

	require.NoError(t, e.svc.Auth.SetActive(ctx, e.admin(), e.fx.Customer.ID, false))
	require.NoError(t, e.svc.Auth.RequestPasswordReset(ctx, "maria@example.com"))
	assert.Len(t, box.messages(), 1)

	err := e.svc.Auth.ConfirmPasswordReset(ctx, services.PasswordResetInput{Token: token, Password: "brand-new-1"})
	assert.ErrorIs(t, err, services.ErrInactiveUser)
}

func TestResetTokenDiesWithPasswordChange(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	box := &outbox{}
	e.svc.Auth.SetMailer(box.send)

	require.NoError(t, e.svc.Auth.RequestPasswordReset(ctx, "maria@example.com"))
	token := resetToken(t, box.messages()[0])

	require.NoError(t, e.svc.Auth.ChangePassword(ctx, e.customer(), services.ChangePasswordInput{
		CurrentPassword: testdb.Password, Password: "changed-123", PasswordConfirmation: "changed-123",
	}))

	err := e.svc.Auth.ConfirmPasswordReset(ctx, services.PasswordResetInput{Token: token, Password: "brand-new-1"})
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestChangePasswordClearsPendingFlag(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	u, err := e.svc.Auth.CreateStaff(ctx, e.admin(), services.CreateStaffInput{
		Username: "luis", Email: "luis@example.com", Password: "initial-1",
		Role: models.RoleSeller, RUT: "12.345.678-5", BranchID: e.fx.Branch.ID,
	})
	require.NoError(t, err)
	require.True(t, u.PasswordChangePending)
	luis := services.Actor{UserID: u.ID, Role: models.RoleSeller}

	err = e.svc.Auth.ChangePassword(ctx, luis, services.ChangePasswordInput{CurrentPassword: "wrong", Password: "second-22"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	err = e.svc.Auth.ChangePassword(ctx, luis, services.ChangePasswordInput{CurrentPassword: "initial-1", Password: "initial-1"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	require.NoError(t, e.svc.Auth.ChangePassword(ctx, luis, services.ChangePasswordInput{
		CurrentPassword: "initial-1", Password: "second-22", PasswordConfirmation: "second-22",
	}))

	me, err := e.svc.Auth.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, me.PasswordChangePending)

	_, err = e.svc.Auth.Login(ctx, services.LoginInput{Login: "luis", Password: "second-22"})
	require.NoError(t, err)

	var failed int64
	e.db.Model(&models.ActivityLog{}).Where("action = ?", "password_change_failed").Count(&failed)
	assert.Equal(t, int64(1), failed)
}

func TestUpdateProfile(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	u, err := e.svc.Auth.UpdateProfile(ctx, e.customer(), services.ProfileInput{
		FirstName: ptr("María José"),
		Email:     ptr(" MJ@Example.com "),
		Phone:     ptr("+56922223333"),
		Commune:   ptr("providencia"),
	})
	require.NoError(t, err)
	assert.Equal(t, "María José", u.FirstName)
	assert.Equal(t, "mj@example.com", u.Email)
	require.NotNil(t, u.Customer)
	assert.Equal(t, "Providencia", u.Customer.Commune)
	assert.Equal(t, "+56922223333", u.Customer.Phone)
	assert.Equal(t, "Calle 1", u.Customer.Address, "absent fields are kept")
	require.NotNil(t, u.Customer.CommuneID)
	assert.NotEqual(t, e.fx.Santiago.ID, *u.Customer.CommuneID)

	_, err = e.svc.Auth.UpdateProfile(ctx, e.customer(), services.ProfileInput{Email: ptr("admin@example.com")})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = e.svc.Auth.UpdateProfile(ctx, e.customer(), services.ProfileInput{Commune: ptr("Springfield")})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	clerk := services.Actor{UserID: e.fx.Clerk.ID, Role: models.RoleWarehouse}
	_, err = e.svc.Auth.UpdateProfile(ctx, clerk, services.ProfileInput{Address: ptr("Somewhere 1")})
	assert.ErrorIs(t, err, services.ErrCustomerProfile)

	p, err := e.svc.Auth.UpdateProfile(ctx, clerk, services.ProfileInput{LastName: ptr("Soto")})
	require.NoError(t, err)
	assert.Equal(t, "Soto", p.LastName)
}

func TestUpdateUser(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	other := models.Branch{Name: "Norte", Address: "Av. Norte 1"}
	require.NoError(t, e.db.Create(&other).Error)

	_, err := e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Clerk.ID, services.UpdateUserInput{BranchID: &other.ID})
	assert.ErrorIs(t, err, services.ErrInvalidInput, "the bulk warehouse is not in the new branch")

	u, err := e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Clerk.ID, services.UpdateUserInput{
		Role:        ptr(models.RoleSeller),
		BranchID:    &other.ID,
		WarehouseID: ptr(uint(0)),
		LastName:    ptr("Rojas"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, u.Role)
	assert.Equal(t, "Rojas", u.LastName)
	require.NotNil(t, u.Staff)
	require.NotNil(t, u.Staff.BranchID)
	assert.Equal(t, other.ID, *u.Staff.BranchID)
	assert.Nil(t, u.Staff.WarehouseID)

	u, err = e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Clerk.ID, services.UpdateUserInput{Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, u.Active)

	_, err = e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Customer.ID, services.UpdateUserInput{Role: ptr(models.RoleSeller)})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Admin.ID, services.UpdateUserInput{Role: ptr(models.RoleSeller)})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Admin.ID, services.UpdateUserInput{Active: ptr(false)})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = e.svc.Auth.UpdateUser(ctx, e.admin(), e.fx.Customer.ID, services.UpdateUserInput{Email: ptr("pedro@example.com")})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = e.svc.Auth.UpdateUser(ctx, e.admin(), 9999, services.UpdateUserInput{FirstName: ptr("x")})
	assert.ErrorIs(t, err, services.ErrNotFound)

	var updated int64
	e.db.Model(&models.ActivityLog{}).Where("action = ?", "user_updated").Count(&updated)
	assert.Equal(t, int64(2), updated)
}
