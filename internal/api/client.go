package api

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the vendor's public API endpoint.
const DefaultBaseURL = "http://api.dessmonitor.com/public/"

// DefaultCompanyKey identifies the monitoring platform tenant.
const DefaultCompanyKey = "bnrl_frRFjEz8Mkn"

const (
	appClient  = "web"
	appID      = "ha-dessmonitor"
	appVersion = "1.1.0"

	requestTimeout = 30 * time.Second

	actionAuth = "authSource"
)

// Param is one query parameter. Parameters are kept as an ordered list
// because the request signature covers them in insertion order.
type Param struct {
	Key   string
	Value string
}

// Config carries the account settings needed to build a Client.
type Config struct {
	Username   string
	Password   string
	CompanyKey string
	BaseURL    string
	// Store persists the session triple between runs; nil disables it.
	Store TokenStore
}

// Client talks to the DessMonitor cloud API using its signed-GET scheme.
// Methods are safe for concurrent use; token refresh is serialized.
type Client struct {
	username   string
	password   string
	companyKey string
	baseURL    string
	http       *http.Client
	store      TokenStore

	mu          sync.Mutex // guards the session triple
	token       string
	secret      string
	tokenExpire int64 // unix seconds; 0 means no expiry reported

	refreshMu sync.Mutex // serializes inline re-authentication
}

// NewClient builds a client; zero-value config fields fall back to the
// public endpoint and the default company key.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CompanyKey == "" {
		cfg.CompanyKey = DefaultCompanyKey
	}
	return &Client{
		username:   cfg.Username,
		password:   cfg.Password,
		companyKey: cfg.CompanyKey,
		baseURL:    cfg.BaseURL,
		http:       &http.Client{Timeout: requestTimeout},
		store:      cfg.Store,
	}
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// actionString renders "&action=NAME&k1=v1&k2=v2..." exactly as signed.
func actionString(action string, params []Param) string {
	var b strings.Builder
	b.WriteString("&action=")
	b.WriteString(action)
	for _, p := range params {
		b.WriteByte('&')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

// session returns a consistent snapshot of the current triple.
func (c *Client) session() (token, secret string, expire int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.secret, c.tokenExpire
}

func (c *Client) setSession(token, secret string, expire int64) {
	c.mu.Lock()
	c.token = token
	c.secret = secret
	c.tokenExpire = expire
	c.mu.Unlock()
}

// sessionExpired reports whether the held token has passed its expiry.
// A session with no reported expiry never expires.
func (c *Client) sessionExpired() bool {
	_, _, expire := c.session()
	return expire != 0 && time.Now().Unix() >= expire
}

// sign computes the request signature. With an active session the secret
// and token are folded in; before authentication the hashed password is
// used instead.
func sign(salt, token, secret, password, action string) string {
	if token != "" && secret != "" {
		return sha1Hex(salt + secret + token + action)
	}
	return sha1Hex(salt + sha1Hex(password) + action)
}

// makeRequest performs one signed GET. An expired session is refreshed
// inline before signing, except for the auth action itself.
func (c *Client) makeRequest(ctx context.Context, action string, params []Param) (*envelope, error) {
	if action != actionAuth && c.sessionExpired() {
		if err := c.refreshSession(ctx); err != nil {
			return nil, err
		}
	}

	token, secret, _ := c.session()
	salt := strconv.FormatInt(time.Now().UnixMilli(), 10)
	as := actionString(action, params)
	signature := sign(salt, token, secret, c.password, as)

	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("?sign=")
	b.WriteString(signature)
	b.WriteString("&salt=")
	b.WriteString(salt)
	if token != "" && action != actionAuth {
		b.WriteString("&token=")
		b.WriteString(token)
	}
	b.WriteString(as)

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, b.String(), nil)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Action: action, StatusCode: resp.StatusCode}
	}

	var payload envelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &TransportError{Action: action, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if payload.Err != 0 {
		msg := payload.Desc
		if msg == "" {
			msg = fmt.Sprintf("API error %d", payload.Err)
		}
		return nil, &APIError{Action: action, Code: payload.Err, Message: msg}
	}
	return &payload, nil
}

// refreshSession re-authenticates at most once per expiry, no matter how
// many callers notice the expired token at the same time.
func (c *Client) refreshSession(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if !c.sessionExpired() {
		return nil
	}
	log.Printf("api: session expired, re-authenticating %s", c.username)
	return c.Authenticate(ctx)
}
