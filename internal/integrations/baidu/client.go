package baidu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"baidu-face-go/config"

	log "github.com/sirupsen/logrus"
)

// tokenExpiryMargin is subtracted from the server-reported lifetime so a token
// is re-acquired before it actually expires.
const tokenExpiryMargin = 60 * time.Second

// Client talks to the Baidu cloud face API. It holds the OAuth bearer token
// and re-acquires it lazily on expiry or on an authentication rejection. The
// token is only written under the mutex; concurrent callers share it read-only.
type Client struct {
	cfg        config.BaiduConfig
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// SearchUser is one candidate returned by the face search.
type SearchUser struct {
	GroupID  string  `json:"group_id"`
	UserID   string  `json:"user_id"`
	UserInfo string  `json:"user_info"`
	Score    float64 `json:"score"`
}

// SearchResult is the parsed result of a face search call.
type SearchResult struct {
	UserList []SearchUser `json:"user_list"`
}

// envelope is the common wrapper of face API responses.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *serverError    `json:"error"`
}

type serverError struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	Error       *serverError `json:"error"`
}

// NewClient creates a new Baidu face API client.
func NewClient(cfg config.BaiduConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AcquireToken requests a bearer token from the OAuth endpoint and stores it.
// The returned token is also kept inside the client for subsequent calls.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireTokenLocked(ctx)
}

func (c *Client) acquireTokenLocked(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("client_id", c.cfg.APIKey)
	q.Set("client_secret", c.cfg.SecretKey)
	q.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.TokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warnf("Can't connect to baidu token api: %v", err)
		return "", netError(err)
	}
	defer resp.Body.Close()

	var answer tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		log.Warnf("Unreadable response from baidu token api: %v", err)
		return "", netError(err)
	}

	if resp.StatusCode < 300 && answer.AccessToken != "" {
		c.token = answer.AccessToken
		c.tokenExpiry = tokenExpiry(answer.ExpiresIn)
		log.Debugf("Baidu token acquired, valid until %s", c.tokenExpiry.Format(time.RFC3339))
		return c.token, nil
	}

	log.Warnf("Error %d from baidu token api", resp.StatusCode)
	return "", &AuthError{Message: serverMessage(answer.Error)}
}

// currentToken returns a valid token, re-acquiring it if the held one expired.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	return c.acquireTokenLocked(ctx)
}

// invalidateToken drops the held token so the next call re-acquires one.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// Call issues a generic face API request. The function name selects the
// endpoint, the token is embedded as a query parameter, and the raw result
// payload is returned for the caller to parse. On an authentication rejection
// the token is re-acquired once and the call retried.
func (c *Client) Call(ctx context.Context, method, function string, query url.Values, form url.Values) (json.RawMessage, error) {
	result, err := c.doCall(ctx, method, function, query, form)

	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		log.Warnf("Baidu face api rejected the token, re-acquiring: %v", apiErr)
		c.invalidateToken()
		result, err = c.doCall(ctx, method, function, query, form)
	}
	return result, err
}

func (c *Client) doCall(ctx context.Context, method, function string, query url.Values, form url.Values) (json.RawMessage, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("access_token", token)
	for key, values := range query {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	callURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.cfg.APIURL, "/"), function, q.Encode())

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, callURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warnf("Can't connect to baidu face api: %v", err)
		return nil, netError(err)
	}
	defer resp.Body.Close()

	var answer envelope
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		log.Warnf("Unreadable response from baidu face api %s: %v", function, err)
		return nil, netError(err)
	}

	log.Debugf("Read from baidu face api %s: %d bytes result", function, len(answer.Result))

	if resp.StatusCode < 300 {
		return answer.Result, nil
	}

	log.Warnf("Error %d from baidu face api %s", resp.StatusCode, function)
	return nil, &APIError{StatusCode: resp.StatusCode, Message: serverMessage(answer.Error)}
}

// GroupList returns the ids of all face groups enrolled on the server.
func (c *Client) GroupList(ctx context.Context) ([]string, error) {
	result, err := c.Call(ctx, http.MethodPost, "faceset/group/getlist", nil, nil)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var parsed struct {
		GroupIDList []string `json:"group_id_list"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse group list result: %w", err)
	}
	return parsed.GroupIDList, nil
}

// GroupUsers returns the ids of all persons enrolled under a group.
func (c *Client) GroupUsers(ctx context.Context, groupID string) ([]string, error) {
	query := url.Values{}
	query.Set("group_id", groupID)

	result, err := c.Call(ctx, http.MethodGet, "faceset/group/getusers", query, nil)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var parsed struct {
		UserIDList []string `json:"user_id_list"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse group users result: %w", err)
	}
	return parsed.UserIDList, nil
}

// Search submits a base64-encoded image for face search against a group.
// A nil result means the server found no match.
func (c *Client) Search(ctx context.Context, imageBase64, groupIDList string) (*SearchResult, error) {
	query := url.Values{}
	query.Set("image_type", "BASE64")
	query.Set("group_id_list", groupIDList)

	form := url.Values{}
	form.Set("image", imageBase64)

	result, err := c.Call(ctx, http.MethodPost, "search", query, form)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var parsed SearchResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search result: %w", err)
	}
	return &parsed, nil
}

// netError wraps a transport failure, flagging timeouts for the logs.
func netError(err error) *NetworkError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	return &NetworkError{Cause: err, Timeout: timeout}
}

func tokenExpiry(expiresIn int64) time.Time {
	if expiresIn <= 0 {
		// Baidu tokens are valid for 30 days; be conservative when the
		// server does not report a lifetime.
		return time.Now().Add(24 * time.Hour)
	}
	return time.Now().Add(time.Duration(expiresIn)*time.Second - tokenExpiryMargin)
}

func serverMessage(e *serverError) string {
	if e == nil || e.Message == "" {
		return "unknown error"
	}
	return e.Message
}
