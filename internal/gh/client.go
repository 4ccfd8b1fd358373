// Package gh provides the GitHub API client used to feed the mirror.
package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

const (
	apiBaseURL = "https://api.github.com"

	defaultPerPage = 100
)

// User represents a GitHub user.
type User struct {
	Login string `json:"login"`
}

// Item represents an issue or pull request as returned by the API. The two
// share this wire shape; pull requests additionally carry the merged flag.
type Item struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Merged    bool      `json:"merged"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment represents an issue or pull request comment.
type Comment struct {
	ID        int64     `json:"id"`
	User      User      `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemPage is one page of a listing of issues or pull requests.
type ItemPage struct {
	Items []Item
	// NextToken continues the listing; empty when this was the last page.
	NextToken string
	// FullyEnumerated is true when no further pages exist.
	FullyEnumerated bool
	// QuotaConsumed is the number of quota units this call cost.
	QuotaConsumed int
}

// CommentPage is one page of a comment listing.
type CommentPage struct {
	Comments        []Comment
	NextToken       string
	FullyEnumerated bool
	QuotaConsumed   int
}

// TransientError is a network failure or 5xx-class response. The operation
// can be retried or deferred to the next cycle.
type TransientError struct {
	Status string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient fetch error: %v", e.Err)
	}
	return fmt.Sprintf("transient fetch error: %s", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// QuotaError means the remote rejected the call because the quota window is
// exhausted. Sync must stop issuing work until ResetAt.
type QuotaError struct {
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exhausted until %s", e.ResetAt.Format(time.RFC3339))
}

// NotFoundError means the remote explicitly reports the entity gone (404/410).
// This is positive evidence for tombstoning.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("remote reports entity gone: %s", e.URL)
}

// QuotaObserver receives the remaining quota and window reset time reported
// on every API response.
type QuotaObserver func(remaining int, resetAt time.Time)

// Client is a GitHub API client scoped to one repository.
type Client struct {
	owner      string
	repo       string
	baseURL    string
	perPage    int
	httpClient *http.Client
	onQuota    QuotaObserver
}

// New creates a client for owner/repo authenticated with the given token.
func New(token, owner, repo string) *Client {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = 30 * time.Second

	return &Client{
		owner:      owner,
		repo:       repo,
		baseURL:    apiBaseURL,
		perPage:    defaultPerPage,
		httpClient: hc,
	}
}

// NewWithBaseURL creates a client against a custom base URL (for testing).
func NewWithBaseURL(token, owner, repo, baseURL string) *Client {
	c := New(token, owner, repo)
	c.baseURL = baseURL
	return c
}

// SetPerPage overrides the page size requested from listing endpoints.
func (c *Client) SetPerPage(n int) {
	if n > 0 {
		c.perPage = n
	}
}

// SetQuotaObserver registers a callback invoked with the quota state reported
// on each response.
func (c *Client) SetQuotaObserver(fn QuotaObserver) {
	c.onQuota = fn
}

// ghHostsConfig represents the structure of ~/.config/gh/hosts.yml.
type ghHostsConfig map[string]ghHost

type ghHost struct {
	OAuthToken string `yaml:"oauth_token"`
	User       string `yaml:"user"`
}

// GetToken attempts to get a GitHub token from various sources:
// 1. GITHUB_TOKEN environment variable
// 2. Run `gh auth token` command (gh CLI with keyring storage)
// 3. Read from ~/.config/gh/hosts.yml (older gh CLI format)
func GetToken() (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}

	if token, err := getTokenFromGhCLI(); err == nil && token != "" {
		return token, nil
	}

	if token, err := getTokenFromGhConfig(); err == nil && token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no GitHub token found: set GITHUB_TOKEN, or install gh CLI and run 'gh auth login'")
}

func getTokenFromGhCLI() (string, error) {
	cmd := exec.Command("gh", "auth", "token")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func getTokenFromGhConfig() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", "gh", "hosts.yml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read gh config: %w", err)
	}

	var config ghHostsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return "", fmt.Errorf("failed to parse gh config: %w", err)
	}

	if host, ok := config["github.com"]; ok && host.OAuthToken != "" {
		return host.OAuthToken, nil
	}

	return "", fmt.Errorf("no oauth_token found in gh config")
}

// listURL builds the first-page URL for a collection listing. Listings are
// sorted by update time ascending so the last merged revision is the page's
// high-water mark.
func (c *Client) listURL(collection, since string) string {
	q := url.Values{}
	q.Set("state", "all")
	q.Set("sort", "updated")
	q.Set("direction", "asc")
	q.Set("per_page", strconv.Itoa(c.perPage))
	if since != "" {
		q.Set("since", since)
	}
	return fmt.Sprintf("%s/repos/%s/%s/%s?%s", c.baseURL, c.owner, c.repo, collection, q.Encode())
}

// ListItems fetches one page of the issues or pulls listing. collection must
// be "issues" or "pulls". pageToken continues a previous listing; when empty,
// a new listing starts, optionally filtered to entities updated since the
// given revision marker.
func (c *Client) ListItems(ctx context.Context, collection, pageToken, since string) (*ItemPage, error) {
	u := pageToken
	if u == "" {
		u = c.listURL(collection, since)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	next := getNextPageURL(resp.Header.Get("Link"))
	return &ItemPage{
		Items:           items,
		NextToken:       next,
		FullyEnumerated: next == "",
		QuotaConsumed:   quotaCost(resp),
	}, nil
}

// ListComments fetches one page of the comment listing for an item.
func (c *Client) ListComments(ctx context.Context, number int, pageToken, since string) (*CommentPage, error) {
	u := pageToken
	if u == "" {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(c.perPage))
		if since != "" {
			q.Set("since", since)
		}
		u = fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?%s", c.baseURL, c.owner, c.repo, number, q.Encode())
	}

	resp, err := c.doRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var comments []Comment
	if err := json.NewDecoder(resp.Body).Decode(&comments); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	next := getNextPageURL(resp.Header.Get("Link"))
	return &CommentPage{
		Comments:        comments,
		NextToken:       next,
		FullyEnumerated: next == "",
		QuotaConsumed:   quotaCost(resp),
	}, nil
}

// GetItem fetches a single issue or pull request. collection must be
// "issues" or "pulls". Returns the item and the quota units consumed.
func (c *Client) GetItem(ctx context.Context, collection string, number int) (*Item, int, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/%s/%d", c.baseURL, c.owner, c.repo, collection, number)

	resp, err := c.doRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, 1, err
	}
	defer resp.Body.Close()

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, quotaCost(resp), fmt.Errorf("failed to decode response: %w", err)
	}
	return &item, quotaCost(resp), nil
}

// GetComment fetches a single comment by id.
func (c *Client) GetComment(ctx context.Context, id int64) (*Comment, int, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.baseURL, c.owner, c.repo, id)

	resp, err := c.doRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, 1, err
	}
	defer resp.Body.Close()

	var comment Comment
	if err := json.NewDecoder(resp.Body).Decode(&comment); err != nil {
		return nil, quotaCost(resp), fmt.Errorf("failed to decode response: %w", err)
	}
	return &comment, quotaCost(resp), nil
}

// doRequest performs an authenticated request and classifies failures into
// the transient / quota / gone taxonomy. The response body is open on a nil
// error; the caller closes it.
func (c *Client) doRequest(ctx context.Context, method, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	c.observeQuota(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, &NotFoundError{URL: u}
	case isQuotaStatus(resp):
		resetAt := rateLimitReset(resp)
		resp.Body.Close()
		return nil, &QuotaError{ResetAt: resetAt}
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, &TransientError{Status: resp.Status}
	default:
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("GitHub API error: %s - %s", resp.Status, string(body))
	}
}

// isQuotaStatus recognizes a rate-limit rejection: 429, or 403 with the
// remaining-quota header at zero.
func isQuotaStatus(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// rateLimitReset parses the window reset time from response headers.
func rateLimitReset(resp *http.Response) time.Time {
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if secs, err := strconv.ParseInt(reset, 10, 64); err == nil {
			return time.Unix(secs, 0)
		}
	}
	return time.Now().Add(time.Hour)
}

// observeQuota reports the quota state carried on a response, if any.
func (c *Client) observeQuota(resp *http.Response) {
	if c.onQuota == nil {
		return
	}

	remainingStr := resp.Header.Get("X-RateLimit-Remaining")
	if remainingStr == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return
	}

	c.onQuota(remaining, rateLimitReset(resp))
}

// quotaCost returns the quota units the call cost. Cost-weighted endpoints
// report it in a header; everything else costs one unit.
func quotaCost(resp *http.Response) int {
	if cost := resp.Header.Get("X-RateLimit-Cost"); cost != "" {
		if n, err := strconv.Atoi(cost); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// getNextPageURL extracts the next page URL from the Link header.
// Link header format: <url>; rel="next", <url>; rel="last"
func getNextPageURL(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}

	re := regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)
	matches := re.FindStringSubmatch(linkHeader)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}
