// Package auth bootstraps authenticated HTTP clients for the HyP3 API using
// NASA Earthdata Login, either with a bearer token or by trading a
// username/password for the asf-urs session cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
)

// DefaultAuthURL is the Earthdata OAuth authorize endpoint that redirects
// through ASF's login handler, leaving the session cookie on the jar.
const DefaultAuthURL = "https://urs.earthdata.nasa.gov/oauth/authorize" +
	"?response_type=code&client_id=BO_n7nTIlMljdvU6kRRB3g" +
	"&redirect_uri=https://auth.asf.alaska.edu/login&app_type=401"

// ProfileURL is where users fix an out-of-date Earthdata profile.
const ProfileURL = "https://urs.earthdata.nasa.gov/profile"

// ErrAuthentication marks a failed Earthdata login.
var ErrAuthentication = errors.New("earthdata authentication failed")

// SessionConfig holds credentials for one of the two supported auth forms.
// A non-empty Token wins; otherwise Username and Password are required.
type SessionConfig struct {
	Username string
	Password string
	Token    string

	// UserAgent is set on every request made with the returned client.
	UserAgent string

	// AuthURL overrides the Earthdata authorize endpoint. Tests point this
	// at a fake server; production code leaves it empty.
	AuthURL string
}

// NewSession returns an *http.Client whose requests are authenticated
// against the HyP3 API. With a token the client sends a bearer header; with
// username and password it performs the Earthdata login flow once and keeps
// the resulting session cookie on its jar.
func NewSession(ctx context.Context, cfg SessionConfig) (*http.Client, error) {
	if cfg.Token != "" {
		return &http.Client{
			Transport: &headerTransport{
				base:          http.DefaultTransport,
				userAgent:     cfg.UserAgent,
				authorization: "Bearer " + cfg.Token,
			},
		}, nil
	}

	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: either a token or both username and password are required", ErrAuthentication)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	client := &http.Client{
		Jar: jar,
		Transport: &headerTransport{
			base:      http.DefaultTransport,
			userAgent: cfg.UserAgent,
		},
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building auth request: %w", err)
	}
	req.SetBasicAuth(cfg.Username, cfg.Password)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	// Earthdata reports login problems as query parameters on the final
	// redirect rather than as an error status.
	query := resp.Request.URL.Query()
	errorMsg := query.Get("error_msg")
	resolutionURL := query.Get("resolution_url")

	if errorMsg != "" && resolutionURL != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrAuthentication, errorMsg, resolutionURL)
	}
	if errorMsg != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrAuthentication, errorMsg, ProfileURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: could not authenticate with the provided credentials (status %d); "+
			"this could be invalid credentials or a connection error", ErrAuthentication, resp.StatusCode)
	}

	return client, nil
}

// WithUserAgent wraps an existing client so that every request carries the
// given User-Agent. The original client is not modified.
func WithUserAgent(client *http.Client, userAgent string) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &headerTransport{base: base, userAgent: userAgent}
	return &wrapped
}

// headerTransport stamps fixed headers onto every outgoing request.
type headerTransport struct {
	base          http.RoundTripper
	userAgent     string
	authorization string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if t.authorization != "" {
		clone.Header.Set("Authorization", t.authorization)
	}
	return t.base.RoundTrip(clone)
}
