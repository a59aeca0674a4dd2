package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cosmoos/cosmo_backend/tokencache"
)

// Gateway delivers one SMS to one normalized number.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
}

var errUnauthorizedGateway = errors.New("sms gateway rejected token")

// HTTPGateway talks to the SMS management API. It logs in with a
// username/password and keeps the bearer token in a single-slot cache.
type HTTPGateway struct {
	baseURL  string
	username string
	password string
	mask     string
	http     *http.Client
	tokens   *tokencache.Cache
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expiration"`
}

type sendRequest struct {
	Msisdn        []msisdn `json:"msisdn"`
	SourceAddress string   `json:"sourceAddress,omitempty"`
	Message       string   `json:"message"`
}

type msisdn struct {
	Mobile string `json:"mobile"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func NewHTTPGatewayFromEnv() (*HTTPGateway, error) {
	baseURL := strings.TrimSpace(os.Getenv("SMS_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("SMS_API_BASE_URL is empty")
	}
	return NewHTTPGateway(baseURL,
		os.Getenv("SMS_API_USERNAME"),
		os.Getenv("SMS_API_PASSWORD"),
		os.Getenv("SMS_SENDER_MASK"),
		&http.Client{Timeout: 30 * time.Second},
	), nil
}

func NewHTTPGateway(baseURL, username, password, mask string, client *http.Client) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		mask:     mask,
		http:     client,
	}
	g.tokens = tokencache.New(g.login)
	return g
}

func (g *HTTPGateway) login(ctx context.Context) (string, time.Time, error) {
	var resp loginResponse
	if err := g.postJSON(ctx, "/login", "", loginRequest{Username: g.username, Password: g.password}, &resp); err != nil {
		return "", time.Time{}, fmt.Errorf("sms gateway login: %w", err)
	}
	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return resp.Token, time.Now().Add(ttl), nil
}

// Send posts the message. A rejected token is dropped and the send is
// retried once with a fresh login.
func (g *HTTPGateway) Send(ctx context.Context, phone, message string) error {
	err := g.send(ctx, phone, message)
	if errors.Is(err, errUnauthorizedGateway) {
		g.tokens.Invalidate()
		err = g.send(ctx, phone, message)
	}
	return err
}

func (g *HTTPGateway) send(ctx context.Context, phone, message string) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req := sendRequest{
		Msisdn:        []msisdn{{Mobile: phone}},
		SourceAddress: g.mask,
		Message:       message,
	}
	var resp sendResponse
	if err := g.postJSON(ctx, "/sms", token, req, &resp); err != nil {
		return err
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "success") {
		return fmt.Errorf("sms gateway refused message: %s %s", resp.Status, resp.Comment)
	}
	return nil
}

func (g *HTTPGateway) postJSON(ctx context.Context, path, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		return errUnauthorizedGateway
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
