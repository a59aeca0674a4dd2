// Package shopify authenticates and decodes inbound Shopify order webhooks.
package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	HeaderHmac   = "X-Shopify-Hmac-Sha256"
	HeaderTopic  = "X-Shopify-Topic"
	HeaderDomain = "X-Shopify-Shop-Domain"
)

var (
	// ErrNoWebhookSecrets means the tenant has nothing to verify against.
	// This is a configuration error and never lets a request through.
	ErrNoWebhookSecrets = errors.New("no webhook secrets configured")
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrBadSignature     = errors.New("malformed webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// VerifyWebhook checks the base64 HMAC-SHA256 signature of body against each
// secret and succeeds if any one of them matches.
func VerifyWebhook(body []byte, signature string, secrets []string) error {
	usable := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return ErrNoWebhookSecrets
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(given) != sha256.Size {
		return ErrBadSignature
	}

	matched := false
	for _, secret := range usable {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		// Every secret is checked so timing does not reveal which one matched.
		if hmac.Equal(mac.Sum(nil), given) {
			matched = true
		}
	}
	if !matched {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature Shopify would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
