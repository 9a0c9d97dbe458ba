package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// HTTPClientOptions configures the remote directory client.
type HTTPClientOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// HTTPClient reads profiles from a remote directory service over JSON.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ Directory = (*HTTPClient)(nil)

// NewHTTPClient constructs the remote directory client.
func NewHTTPClient(opts HTTPClientOptions) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, eris.New("directory base URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &HTTPClient{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     opts.Logger,
	}, nil
}

// GetProfile fetches /users/{id}.
func (c *HTTPClient) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	if userID <= 0 {
		return Profile{}, eris.Wrapf(ErrProfileNotFound, "user %d", userID)
	}

	resp, err := c.get(ctx, fmt.Sprintf("/users/%d", userID))
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, eris.Wrapf(ErrProfileNotFound, "user %d", userID)
	case resp.StatusCode >= 400:
		return Profile{}, c.statusError(resp, "fetching profile")
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, eris.Wrapf(err, "decoding profile for user %d", userID)
	}
	if profile.UserID == 0 {
		profile.UserID = userID
	}

	return profile, nil
}

// IsAdministrator checks the administrator role on the user's profile.
func (c *HTTPClient) IsAdministrator(ctx context.Context, userID int64) (bool, error) {
	profile, err := c.GetProfile(ctx, userID)
	if err != nil {
		if eris.Is(err, ErrProfileNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.HasRole(RoleAdministrator), nil
}

// IsGroupMember probes /groups/{gid}/members/{uid}; 200 means member, 404 means not.
func (c *HTTPClient) IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	if groupID <= 0 || userID <= 0 {
		return false, nil
	}

	resp, err := c.get(ctx, fmt.Sprintf("/groups/%d/members/%d", groupID, userID))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 400:
		return false, c.statusError(resp, "checking group membership")
	}

	return true, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "building directory request %s", path)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Warn("directory request failed")
		}
		return nil, eris.Wrapf(err, "calling directory %s", path)
	}

	return resp, nil
}

func (c *HTTPClient) statusError(resp *http.Response, action string) error {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Error
	if msg == "" {
		msg = resp.Status
	}
	return eris.Errorf("%s: directory service error: %s", action, msg)
}
