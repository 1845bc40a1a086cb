// Package documentcloud uploads documents to the DocumentCloud REST API.
package documentcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// Default endpoints of the public DocumentCloud deployment.
const (
	DefaultBaseURL = "https://api.www.documentcloud.org/api"
	DefaultAuthURL = "https://accounts.muckrock.com/api/token/"
)

// ErrUnauthorized is returned when the credentials are rejected.
var ErrUnauthorized = errors.New("documentcloud: unauthorized")

// Config holds the API endpoints and credentials.
type Config struct {
	BaseURL  string
	AuthURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a minimal DocumentCloud client. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client

	mu    sync.Mutex
	token string
}

// APIError reports a non-2xx response.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("documentcloud: %s returned %d: %s", e.Op, e.Status, e.Body)
}

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("documentcloud: username and password are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient}, nil
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access string `json:"access"`
}

type documentRequest struct {
	FileURL     string            `json:"file_url"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source,omitempty"`
	Language    string            `json:"language,omitempty"`
	Access      string            `json:"access,omitempty"`
	Projects    []int             `json:"projects,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

// Upload creates a document from a public file URL.
// An expired token is refreshed once.
func (c *Client) Upload(ctx context.Context, upload scraper.Upload) error {
	body, err := encodeUpload(upload)
	if err != nil {
		return err
	}
	err = c.postDocument(ctx, body, false)
	if errors.Is(err, ErrUnauthorized) {
		err = c.postDocument(ctx, body, true)
	}
	return err
}

func encodeUpload(upload scraper.Upload) ([]byte, error) {
	req := documentRequest{
		FileURL:     upload.FileURL,
		Title:       upload.Title,
		Description: upload.Description,
		Source:      upload.Source,
		Language:    upload.Language,
		Access:      upload.Access,
		Data:        upload.Data,
	}
	if upload.Project != "" {
		id, err := strconv.Atoi(upload.Project)
		if err != nil {
			return nil, fmt.Errorf("documentcloud: project id %q is not numeric: %w", upload.Project, err)
		}
		req.Projects = []int{id}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return body, nil
}

func (c *Client) postDocument(ctx context.Context, body []byte, refresh bool) error {
	token, err := c.accessToken(ctx, refresh)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/documents/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError("upload", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) accessToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !refresh {
		return c.token, nil
	}

	body, err := json.Marshal(tokenRequest{Username: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, apiError("token", resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiError("token", resp)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tr.Access == "" {
		return "", errors.New("documentcloud: token response has no access token")
	}
	c.token = tr.Access
	return c.token, nil
}

func apiError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
