package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/orgtree"
)

// CodeAuthenticationFailed is the machine-readable code for identity
// resolution failures at the REST boundary.
const CodeAuthenticationFailed = "AUTHENTICATION_FAILED"

// Lookup outcomes reported to the optional lookup recorder.
const (
	LookupHit      = "hit"
	LookupResolved = "resolved"
	LookupError    = "error"
)

// Error is an authentication failure: the caller could not be identified.
// Never conflated with an authorization denial.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the machine-readable error code.
func (e *Error) Code() string { return CodeAuthenticationFailed }

// Status returns the HTTP status hint.
func (e *Error) Status() int { return http.StatusUnauthorized }

func authError(message string, cause error) *Error {
	return &Error{Message: message, Cause: cause}
}

// Office is one office assignment as the hub reports it.
type Office struct {
	ParentOrgID  int      `json:"parentOrgID"`
	Roles        []string `json:"roles"`
	ChildrenOrgs []int    `json:"childrenOrgs"`
}

// Identity is a resolved caller: user id plus offices keyed by org unit.
type Identity struct {
	UserID  int64
	Offices map[int][]string
}

// Actor converts the identity into the request-scoped authorization context.
// Each call returns a fresh value; actors are never pooled across requests.
func (id *Identity) Actor() *authz.Actor {
	offices := make(map[int][]string, len(id.Offices))
	for unit, roles := range id.Offices {
		offices[unit] = append([]string(nil), roles...)
	}
	return &authz.Actor{UserID: id.UserID, Offices: offices}
}

// OfficesByUnit collapses the hub's office list into the unit-to-roles map
// the evaluator consumes. Later entries for the same unit are merged.
func OfficesByUnit(offices []Office) map[int][]string {
	out := make(map[int][]string, len(offices))
	for _, office := range offices {
		out[office.ParentOrgID] = append(out[office.ParentOrgID], office.Roles...)
	}
	return out
}

// Client talks to the hub over HTTP. Resolved identities are held in an
// expiring LRU keyed by token so repeated requests with the same bearer token
// skip the round trips.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	log          logrus.FieldLogger
	cache        *expirable.LRU[string, *Identity]
	record       func(result string)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger sets the client logger.
func WithClientLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithTokenCache enables the token-to-identity cache.
func WithTokenCache(size int, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = expirable.NewLRU[string, *Identity](size, nil, ttl)
	}
}

// WithServiceToken sets the token used for service-level calls such as the
// org tree fetch.
func WithServiceToken(token string) ClientOption {
	return func(c *Client) { c.serviceToken = token }
}

// WithLookupRecorder reports each token resolution outcome, typically into a
// metrics counter.
func WithLookupRecorder(fn func(result string)) ClientOption {
	return func(c *Client) { c.record = fn }
}

// NewClient builds a hub client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logrus.StandardLogger(),
		record:     func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveToken resolves a bearer token into the caller's identity and office
// assignments. Any failure surfaces as an authentication error.
func (c *Client) ResolveToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		c.record(LookupError)
		return nil, authError("token not provided", nil)
	}
	if c.cache != nil {
		if id, ok := c.cache.Get(token); ok {
			c.record(LookupHit)
			return id, nil
		}
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := c.get(ctx, "/user/me", token, nil, &user); err != nil {
		c.record(LookupError)
		return nil, authError("user lookup failed", err)
	}
	if user.ID == 0 {
		c.record(LookupError)
		return nil, authError("no user id found", nil)
	}

	var offices []Office
	params := url.Values{"offices": {"true"}, "children": {"true"}}
	if err := c.get(ctx, "/office/me", token, params, &offices); err != nil {
		c.record(LookupError)
		return nil, authError("office lookup failed", err)
	}

	id := &Identity{
		UserID:  user.ID,
		Offices: OfficesByUnit(offices),
	}
	if c.cache != nil {
		c.cache.Add(token, id)
	}
	c.record(LookupResolved)
	return id, nil
}

// FetchTree retrieves the full org-unit tree rooted at National. Implements
// orgtree.Fetcher.
func (c *Client) FetchTree(ctx context.Context) (orgtree.Node, error) {
	var resp struct {
		Unit struct {
			ID int `json:"id"`
		} `json:"unit"`
		Children []orgtree.Node `json:"children"`
	}
	path := fmt.Sprintf("/org-unit/%d", authz.RootUnit)
	if err := c.get(ctx, path, c.serviceToken, nil, &resp); err != nil {
		return orgtree.Node{}, fmt.Errorf("org tree fetch: %w", err)
	}
	if resp.Unit.ID == 0 {
		return orgtree.Node{}, fmt.Errorf("org tree fetch: response missing root unit")
	}
	return orgtree.Node{ID: resp.Unit.ID, Children: resp.Children}, nil
}

func (c *Client) get(ctx context.Context, path, token string, params url.Values, dest interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if token != "" {
		params.Set("token", token)
	}
	u := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub returned %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding hub response for %s: %w", path, err)
	}
	return nil
}
