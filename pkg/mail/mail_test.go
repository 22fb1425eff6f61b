package mail_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/mail"
)

func TestRenderOrderCreated(t *testing.T) {
	html, plain, err := mail.Render(mail.Message{
		Template: "order_created",
		Data: map[string]any{
			"customer": "Ana",
			"order_id": 7,
			"total":    "40000",
			"lines": []map[string]any{
				{"quantity": 2, "name": "Martillo", "subtotal": "20000"},
			},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "#7")
	assert.Contains(t, html, "2 x Martillo")
	assert.Contains(t, plain, "$40000")
}

func TestRenderPaymentResultBranches(t *testing.T) {
	_, plain, err := mail.Render(mail.Message{
		Template: "payment_result",
		Data:     map[string]any{"order_id": 3, "status": "rechazado"},
	})
	require.NoError(t, err)
	assert.Contains(t, plain, "rechazado")
}

func TestUnknownTemplate(t *testing.T) {
	err := mail.LogSender{}.Send(context.Background(), mail.Message{Template: "missing"})
	assert.Error(t, err)
}

func TestRenderPasswordReset(t *testing.T) {
	html, plain, err := mail.Render(mail.Message{
		Template: "password_reset",
		Data: map[string]any{
			"name":    "Ana",
			"url":     "https://shop.test/reset-password?token=a.b&c",
			"expires": "16-10-2026 15:04",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, plain, "https://shop.test/reset-password?token=a.b&c")
	assert.Contains(t, html, `href="https://shop.test/reset-password?token=a.b&amp;c"`)
	assert.Contains(t, plain, "Hola Ana")
}
