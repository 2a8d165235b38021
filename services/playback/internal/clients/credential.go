package clients

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/lesson-platform/services/playback/internal/credentials"
)

// CredentialClient calls the credential service that issues short-lived
// viewing tokens per lesson.
type CredentialClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Log        *zap.Logger
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

func NewCredentialClient(baseURL string, log *zap.Logger) *CredentialClient {
	return &CredentialClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: newHTTPClient(),
		Log:        log,
	}
}

// IssueToken requests a fresh credential for the lesson.
func (c *CredentialClient) IssueToken(ctx context.Context, lessonID string) (credentials.Grant, error) {
	url := c.BaseURL + "/lessons/" + lessonID + "/token"
	resp, err := postJSON[tokenResponse](ctx, c.HTTPClient, url, struct{}{})
	if err != nil {
		c.Log.Warn("credential request failed", zap.String("lesson_id", lessonID), zap.Error(err))
		return credentials.Grant{}, err
	}
	return credentials.Grant{Token: resp.Token, ExpiresIn: resp.ExpiresIn}, nil
}
