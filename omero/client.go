/*
Package omero is a client for the OMERO.web JSON API and the raw pixel service.
It supports login, group override, image lookup with rendering metadata, raw
plane reads through per-call pixel store handles, and ROI persistence.
*/
package omero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blang/semver"
	"github.com/google/uuid"
	"github.com/janelia-flyem/omeview/omv"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrNotFound is returned when a looked-up object does not exist or is not visible.
	ErrNotFound = errors.New("no such object")

	// ErrClosed is returned when a closed RawPixelsStore is used.
	ErrClosed = errors.New("raw pixels store is closed")

	// ErrNotLoggedIn is returned by calls that need a session before Login/JoinSession.
	ErrNotLoggedIn = errors.New("not logged in to OMERO")
)

// SupportedAPI is the range of JSON API versions this client speaks.
var SupportedAPI = semver.MustParseRange(">=0.0.0 <1.0.0")

// Options tune a Client.  Zero values give sensible defaults.
type Options struct {
	// PixelService is the base URL of the raw pixel service.  Defaults to the host.
	PixelService string

	// HTTPClient is used as the transport; its Jar is replaced by a session cookie jar.
	HTTPClient *http.Client
}

// Client is a connection to one OMERO.web server.
type Client struct {
	host         string
	pixelService string
	client       *http.Client

	mu         sync.RWMutex
	apiBase    string
	apiVersion semver.Version
	versions   []semver.Version
	csrfToken  string
	sessionKey string
	group      int
	groupSet   bool
	context    EventContext
	loggedIn   bool
}

// EventContext describes the logged-in session as reported by the server.
type EventContext struct {
	UserID      int64  `json:"userId"`
	UserName    string `json:"userName"`
	GroupID     int64  `json:"groupId"`
	GroupName   string `json:"groupName"`
	SessionUUID string `json:"sessionUuid"`
}

// NewClient returns a client for the OMERO.web instance at host.  No network
// traffic happens until Connect.
func NewClient(host string, opts *Options) (*Client, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("bad OMERO host %q: %v", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("OMERO host %q must be an http(s) URL", host)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	c := &Client{
		host:         strings.TrimRight(host, "/"),
		pixelService: strings.TrimRight(host, "/"),
	}
	httpClient := &http.Client{}
	if opts != nil {
		if opts.HTTPClient != nil {
			clone := *opts.HTTPClient
			httpClient = &clone
		}
		if opts.PixelService != "" {
			c.pixelService = strings.TrimRight(opts.PixelService, "/")
		}
	}
	httpClient.Jar = jar
	c.client = httpClient
	return c, nil
}

// Host returns the OMERO.web base URL.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loggedIn {
		return fmt.Sprintf("OMERO connection to %s as %s (group %s)", c.host, c.context.UserName, c.context.GroupName)
	}
	return fmt.Sprintf("OMERO connection to %s", c.host)
}

// SetGroup sets the group override applied to lookups.  Use -1 to search all groups.
func (c *Client) SetGroup(group int) {
	c.mu.Lock()
	c.group = group
	c.groupSet = true
	c.mu.Unlock()
}

// EventContext returns the session info reported at login.
func (c *Client) EventContext() EventContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// APIVersion returns the negotiated JSON API version.
func (c *Client) APIVersion() semver.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion
}

// APIVersions returns every version the server advertised.
func (c *Client) APIVersions() []semver.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]semver.Version(nil), c.versions...)
}

type apiVersionsResponse struct {
	Data []struct {
		Version string `json:"version"`
		BaseURL string `json:"url:base"`
	} `json:"data"`
}

// Connect discovers the JSON API version and fetches a CSRF token.
func (c *Client) Connect(ctx context.Context) error {
	var versions apiVersionsResponse
	if err := c.getJSON(ctx, c.host+"/api/", nil, &versions); err != nil {
		return fmt.Errorf("unable to discover OMERO API at %s: %w", c.host, err)
	}
	type candidate struct {
		v    semver.Version
		base string
	}
	var candidates []candidate
	var advertised []semver.Version
	for _, d := range versions.Data {
		v, err := semver.ParseTolerant(d.Version)
		if err != nil {
			omv.Warningf("Ignoring unparsable OMERO API version %q: %v\n", d.Version, err)
			continue
		}
		advertised = append(advertised, v)
		if SupportedAPI(v) {
			candidates = append(candidates, candidate{v, d.BaseURL})
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("OMERO server at %s advertises no supported API version (%v)", c.host, advertised)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].v.GT(candidates[j].v) })
	best := candidates[0]
	base := best.base
	if base == "" {
		base = fmt.Sprintf("%s/api/v%d/", c.host, best.v.Major)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var token struct {
		Data string `json:"data"`
	}
	if err := c.getJSON(ctx, base+"token/", nil, &token); err != nil {
		return fmt.Errorf("unable to get CSRF token: %w", err)
	}

	c.mu.Lock()
	c.apiBase = base
	c.apiVersion = best.v
	c.versions = advertised
	c.csrfToken = token.Data
	c.mu.Unlock()
	omv.Debugf("Using OMERO JSON API %s at %s\n", best.v, base)
	return nil
}

type loginResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	EventContext EventContext `json:"eventContext"`
}

// Login creates a new session with a username and password on the numbered server.
func (c *Client) Login(ctx context.Context, username, password string, server int) error {
	if c.base() == "" {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("server", strconv.Itoa(server))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"login/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req, true)

	var resp loginResponse
	if err := c.doJSON(req, &resp); err != nil {
		return fmt.Errorf("login to %s as %q failed: %w", c.host, username, err)
	}
	if !resp.Success {
		return fmt.Errorf("login to %s as %q failed: %s", c.host, username, resp.Message)
	}
	c.mu.Lock()
	c.context = resp.EventContext
	c.loggedIn = true
	c.mu.Unlock()
	omv.Infof("Logged in to %s as %s (session %s)\n", c.host, resp.EventContext.UserName, resp.EventContext.SessionUUID)
	return nil
}

// JoinSession reuses an existing session identified by its key instead of a password.
func (c *Client) JoinSession(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("empty session key")
	}
	c.mu.Lock()
	c.sessionKey = key
	c.mu.Unlock()
	if c.base() == "" {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.context.SessionUUID = key
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

// Close releases idle connections.  The server session is left to expire.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func (c *Client) base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiBase
}

// query returns the common query parameters for lookups.
func (c *Client) query(lookup bool) url.Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q := url.Values{}
	if c.sessionKey != "" {
		q.Set("bsession", c.sessionKey)
	}
	if lookup && c.groupSet {
		q.Set("group", strconv.Itoa(c.group))
	}
	return q
}

func (c *Client) setHeaders(req *http.Request, mutating bool) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if mutating {
		c.mu.RLock()
		req.Header.Set("X-CSRFToken", c.csrfToken)
		c.mu.RUnlock()
		req.Header.Set("Referer", c.host+"/")
	}
}

func withQuery(u string, q url.Values) string {
	if len(q) == 0 {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + q.Encode()
	}
	return u + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, u string, q url.Values, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, withQuery(u, q), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, false)
	return c.doJSON(req, v)
}

func (c *Client) postJSON(ctx context.Context, u string, q url.Values, body, v interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, withQuery(u, q), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, true)
	return c.doJSON(req, v)
}

func (c *Client) doJSON(req *http.Request, v interface{}) error {
	data, err := c.do(req)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("bad JSON from %s: %v", req.URL.Path, err)
	}
	return nil
}

// do performs the request and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, errorMessage(data))
	}
	return data, nil
}

func errorMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err == nil && m.Message != "" {
		return m.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}
