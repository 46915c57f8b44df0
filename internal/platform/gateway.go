package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/replygram/replygram/internal/models"
)

// GatewayClient implements Client against a gateway sidecar that speaks
// the platform's actual wire protocol. The core never talks to the
// platform directly; the gateway owns device fingerprints, proxies and
// protocol churn.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Client = (*GatewayClient)(nil)

type gatewayError struct {
	Code string `json:"code"`
}

func (c *GatewayClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var gerr gatewayError
		_ = json.NewDecoder(resp.Body).Decode(&gerr)
		switch gerr.Code {
		case "invalid_credentials":
			return ErrInvalidCredentials
		case "challenge_required":
			return ErrChallengeRequired
		case "two_factor_required":
			return ErrTwoFactorRequired
		default:
			return fmt.Errorf("%w: gateway returned %d (%s)", ErrTransport, resp.StatusCode, gerr.Code)
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
		}
	}
	return nil
}

func (c *GatewayClient) ProbeSession(ctx context.Context, token string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	err := c.post(ctx, "/session/probe", map[string]string{"token": token}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (c *GatewayClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.post(ctx, "/session/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *GatewayClient) FetchComments(ctx context.Context, token, mediaID string, limit int) ([]models.Comment, error) {
	var resp struct {
		Comments []models.Comment `json:"comments"`
	}
	err := c.post(ctx, "/comments/list", map[string]any{
		"token":    token,
		"media_id": mediaID,
		"limit":    limit,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

func (c *GatewayClient) FetchRecentMedia(ctx context.Context, token string, limit int) ([]models.Media, error) {
	var resp struct {
		Media []models.Media `json:"media"`
	}
	err := c.post(ctx, "/media/list", map[string]any{
		"token": token,
		"limit": limit,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Media, nil
}

func (c *GatewayClient) PostReply(ctx context.Context, token, mediaID, commentID, text string) error {
	err := c.post(ctx, "/comments/reply", map[string]string{
		"token":      token,
		"media_id":   mediaID,
		"comment_id": commentID,
		"text":       text,
	}, nil)
	if err != nil {
		return &ActionError{Op: "reply", Err: err}
	}
	return nil
}

func (c *GatewayClient) SendDirectMessage(ctx context.Context, token, username, text string) error {
	err := c.post(ctx, "/direct/send", map[string]string{
		"token":    token,
		"username": username,
		"text":     text,
	}, nil)
	if err != nil {
		return &ActionError{Op: "dm", Err: err}
	}
	return nil
}
