package testkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
	"github.com/shashiranjanraj/ferremas/pkg/testkit"
)

func TestMockTransportStubs(t *testing.T) {
	mt := testkit.NewMockTransport()
	ok := mt.On("GET", "https://mindicador.test/api/dolar").ReplyJSON(200, map[string]any{"serie": []any{}})
	mt.On("POST", "https://webpay.test/").Fail(testkit.ErrRefused)
	testkit.Install(t, mt)

	resp, err := fhttp.Get("https://mindicador.test/api/dolar").Send()
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, 1, ok.Times())

	_, err = fhttp.Post("https://webpay.test/transactions").Send()
	assert.Error(t, err)

	_, err = fhttp.Get("https://unknown.test/").Send()
	assert.Error(t, err)

	mt.AssertAllCalled(t)
	assert.Len(t, mt.Calls(), 3)
}

func TestHangTimesOut(t *testing.T) {
	mt := testkit.NewMockTransport()
	mt.On("", "https://slow.test").Hang()
	testkit.Install(t, mt)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := fhttp.Get("https://slow.test/x").WithContext(ctx).Timeout(20 * time.Millisecond).Send()
	require.Error(t, err)
	assert.True(t, fhttp.IsTimeout(err))
}
