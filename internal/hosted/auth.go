package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vcard-wallet-go/internal/models"

	"github.com/tidwall/gjson"
)

// AuthClient wraps the hosted auth endpoints.
type AuthClient struct {
	client *Client
	now    func() time.Time
}

func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c, now: time.Now}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers an account. The session is nil when the project requires
// email confirmation before sign-in.
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	body, err := a.post(ctx, "/signup", credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, nil, err
	}

	if gjson.GetBytes(body, "access_token").Exists() {
		session, err := a.decodeSession(body)
		if err != nil {
			return nil, nil, err
		}
		return session, session.User, nil
	}

	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, nil, fmt.Errorf("decode signup user: %w", err)
	}
	return nil, &user, nil
}

func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	body, err := a.post(ctx, "/token?grant_type=password", credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}
	return a.decodeSession(body)
}

func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	body, err := a.post(ctx, "/token?grant_type=refresh_token", map[string]string{"refresh_token": refreshToken}, "")
	if err != nil {
		return nil, err
	}
	return a.decodeSession(body)
}

func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	body, status, err := a.client.request(ctx, http.MethodGet, a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, parseError(body, status)
	}
	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.post(ctx, "/logout", nil, accessToken)
	return err
}

func (a *AuthClient) post(ctx context.Context, path string, payload any, token string) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal auth request: %w", err)
		}
	}
	respBody, status, err := a.client.request(ctx, http.MethodPost, a.client.authURL+path, body, nil, token)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, parseError(respBody, status)
	}
	return respBody, nil
}

func (a *AuthClient) decodeSession(body []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no access token")
	}
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = a.now().Unix() + session.ExpiresIn
	}
	return &session, nil
}
