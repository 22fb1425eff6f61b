package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
)

func TestRegionsRunNorthToSouth(t *testing.T) {
	e := setup(t)

	regions, err := e.svc.Geography.Regions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 16)
	assert.Equal(t, "CL-AP", regions[0].Code)
	assert.Equal(t, "CL-MA", regions[15].Code)
}

func TestCommunesByRegion(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	byCode, err := e.svc.Geography.Communes(ctx, "cl-rm")
	require.NoError(t, err)
	require.NotEmpty(t, byCode)
	for _, c := range byCode {
		assert.Equal(t, e.fx.Santiago.RegionID, c.RegionID)
	}

	byID, err := e.svc.Geography.Communes(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, len(byCode), len(byID))

	all, err := e.svc.Geography.Communes(ctx, "")
	require.NoError(t, err)
	assert.Greater(t, len(all), len(byCode))
	assert.Equal(t, "Arica", all[0].Name)

	_, err = e.svc.Geography.Communes(ctx, "CL-XX")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestAddCommuneIsUniqueWithinRegion(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	c, err := e.svc.Geography.AddCommune(ctx, e.admin(), services.CommuneInput{RegionID: 7, Name: "  Tiltil "})
	require.NoError(t, err)
	assert.Equal(t, "Tiltil", c.Name)

	_, err = e.svc.Geography.AddCommune(ctx, e.admin(), services.CommuneInput{RegionID: 7, Name: "TILTIL"})
	assert.ErrorIs(t, err, services.ErrConflict)

	// The same name is allowed in another region.
	_, err = e.svc.Geography.AddCommune(ctx, e.admin(), services.CommuneInput{RegionID: 6, Name: "Tiltil"})
	require.NoError(t, err)

	_, err = e.svc.Geography.AddCommune(ctx, e.admin(), services.CommuneInput{RegionID: 99, Name: "Nowhere"})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestCommuneNamesAreResolved(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	u, err := e.svc.Auth.Register(ctx, services.RegisterInput{
		Username: "ana", Email: "ana@example.com", Password: "password1", PasswordConfirmation: "password1",
		Address: "Irarrázaval 100", Commune: "NUNOA",
	})
	require.NoError(t, err)
	require.NotNil(t, u.Customer.CommuneID)
	assert.Equal(t, "Ñuñoa", u.Customer.Commune)

	_, err = e.svc.Auth.Register(ctx, services.RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "password1", PasswordConfirmation: "password1",
		Address: "x", Commune: "Atlantis",
	})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	b, err := e.svc.Branches.Create(ctx, services.BranchInput{Name: "Sur", Address: "Av. Alemania 1", Commune: "temuco"})
	require.NoError(t, err)
	assert.Equal(t, "Temuco", b.Commune)
	require.NotNil(t, b.CommuneID)

	// Communes added later are ambiguous once the name exists twice.
	_, err = e.svc.Geography.AddCommune(ctx, e.admin(), services.CommuneInput{RegionID: 6, Name: "Temuco"})
	require.NoError(t, err)
	_, err = e.svc.Branches.Create(ctx, services.BranchInput{Name: "Sur 2", Address: "x", Commune: "Temuco"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestShippingCommuneIsResolved(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	in := e.pickup(item(e.fx.Hammer, 1))
	in.DeliveryType = models.DeliveryShipping
	order, err := e.svc.Orders.Create(ctx, e.customer(), in)
	require.NoError(t, err)
	assert.Equal(t, "Santiago", order.ShippingCommune, "falls back to the profile")
	assert.Equal(t, &e.fx.Santiago.ID, order.ShippingCommuneID)

	in.ShippingCommune = "las condes"
	order, err = e.svc.Orders.Create(ctx, e.customer(), in)
	require.NoError(t, err)
	assert.Equal(t, "Las Condes", order.ShippingCommune)
	require.NotNil(t, order.ShippingCommuneID)

	in.ShippingCommune = "Gotham"
	_, err = e.svc.Orders.Create(ctx, e.customer(), in)
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	assert.Equal(t, 3, e.bulk(t, e.fx.Hammer), "the rejected order takes no stock")
}
