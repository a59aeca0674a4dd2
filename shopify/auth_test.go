package shopify

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhook_AnyConfiguredSecretMatches(t *testing.T) {
	body := []byte(`{"id":820982911946154500,"total_price":"10.00"}`)
	sig := Sign(body, "secret-a")

	assert.NoError(t, VerifyWebhook(body, sig, []string{"secret-a", "secret-b"}))
	assert.NoError(t, VerifyWebhook(body, sig, []string{"secret-b", "secret-a"}))
	assert.ErrorIs(t, VerifyWebhook(body, sig, []string{"secret-b", "secret-c"}), ErrInvalidSignature)
}

func TestVerifyWebhook_NoSecretsIsConfigError(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign(body, "secret-a")

	assert.ErrorIs(t, VerifyWebhook(body, sig, nil), ErrNoWebhookSecrets)
	assert.ErrorIs(t, VerifyWebhook(body, sig, []string{""}), ErrNoWebhookSecrets)
}

func TestVerifyWebhook_RejectsMissingOrMalformedHeader(t *testing.T) {
	body := []byte(`{"id":1}`)
	secrets := []string{"secret-a"}

	assert.ErrorIs(t, VerifyWebhook(body, "", secrets), ErrMissingSignature)
	assert.ErrorIs(t, VerifyWebhook(body, "not base64!!", secrets), ErrBadSignature)
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	assert.ErrorIs(t, VerifyWebhook(body, short, secrets), ErrBadSignature)
}

func TestVerifyWebhook_BodyMustBeExact(t *testing.T) {
	sig := Sign([]byte(`{"id":1}`), "secret-a")
	assert.ErrorIs(t, VerifyWebhook([]byte(`{"id": 1}`), sig, []string{"secret-a"}), ErrInvalidSignature)
}
