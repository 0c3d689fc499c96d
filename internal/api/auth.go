package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// tokenExpiryMargin is how much remaining lifetime a persisted token needs
// before it is worth reusing.
const tokenExpiryMargin = 300 // seconds

type authResult struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
	Expire int64  `json:"expire"`
}

// Authenticate signs in with the account credentials and installs a fresh
// session triple. Any previously held session is discarded first so the
// request is signed with the password hash.
func (c *Client) Authenticate(ctx context.Context) error {
	c.setSession("", "", 0)

	params := []Param{
		{"usr", c.username},
		{"company-key", c.companyKey},
		{"source", "1"},
		{"_app_client_", appClient},
		{"_app_id_", appID},
		{"_app_version_", appVersion},
	}
	payload, err := c.makeRequest(ctx, actionAuth, params)
	if err != nil {
		return &AuthError{Message: err.Error()}
	}
	if len(payload.Dat) == 0 || string(payload.Dat) == "null" {
		return &AuthError{Message: "no authentication data received"}
	}

	var dat authResult
	if err := json.Unmarshal(payload.Dat, &dat); err != nil {
		return &AuthError{Message: "malformed authentication data: " + err.Error()}
	}
	if dat.Token == "" || dat.Secret == "" {
		return &AuthError{Message: "authentication response missing token or secret"}
	}

	var expiry int64
	if dat.Expire > 0 {
		expiry = time.Now().Unix() + dat.Expire
	} else {
		log.Printf("api: server reported no token expiry, treating session as non-expiring")
	}
	c.setSession(dat.Token, dat.Secret, expiry)
	log.Printf("api: authenticated %s (token valid %ds)", c.username, dat.Expire)

	if c.store != nil {
		st := &StoredToken{Token: dat.Token, Secret: dat.Secret, Expiry: expiry}
		if err := c.store.SaveToken(ctx, st); err != nil {
			log.Printf("api: persist token: %v", err)
		}
	}
	return nil
}

// LoadSavedToken restores a persisted session if one exists and still has
// more than the safety margin of lifetime left. Unusable records are
// cleared. The bool reports whether a session was restored; storage errors
// are returned, absence is not an error.
func (c *Client) LoadSavedToken(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	st, err := c.store.LoadToken(ctx)
	if err != nil {
		return false, err
	}
	if st == nil {
		return false, nil
	}
	if st.Token == "" || st.Secret == "" || st.Expiry == 0 ||
		time.Now().Unix() >= st.Expiry-tokenExpiryMargin {
		log.Printf("api: persisted token unusable, clearing it")
		if err := c.store.ClearToken(ctx); err != nil {
			log.Printf("api: clear token: %v", err)
		}
		return false, nil
	}
	c.setSession(st.Token, st.Secret, st.Expiry)
	log.Printf("api: restored persisted session for %s", c.username)
	return true, nil
}

// ClearSavedToken drops both the in-memory session and the persisted copy.
func (c *Client) ClearSavedToken(ctx context.Context) error {
	c.setSession("", "", 0)
	if c.store == nil {
		return nil
	}
	return c.store.ClearToken(ctx)
}

// Setup establishes a usable session: reuse a persisted token when it has
// enough life left, otherwise authenticate. A rejected first attempt gets
// exactly one retry with cleared state.
func (c *Client) Setup(ctx context.Context) error {
	ok, err := c.LoadSavedToken(ctx)
	if err != nil {
		log.Printf("api: load persisted token: %v", err)
	}
	if ok {
		return nil
	}
	if err := c.Authenticate(ctx); err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			return err
		}
		log.Printf("api: initial authentication failed, retrying once: %v", err)
		if err := c.ClearSavedToken(ctx); err != nil {
			log.Printf("api: clear token before retry: %v", err)
		}
		return c.Authenticate(ctx)
	}
	return nil
}
