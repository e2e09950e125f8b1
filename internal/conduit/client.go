package conduit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dshills/restack/internal/cache"
	"github.com/dshills/restack/internal/redact"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

// ErrNoToken is returned when a client is built without an API token.
var ErrNoToken = errors.New("no Conduit API token configured")

// Options tune a Client. The zero value is usable.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Cache      *cache.Cache
	MaxRetries int
	Timeout    time.Duration
}

// Client talks to a Phabricator instance over Conduit.
type Client struct {
	apiURL     string
	token      string
	client     *http.Client
	log        *slog.Logger
	cache      *cache.Cache
	maxRetries int
}

// NewClient creates a client for the Conduit endpoint at apiURL, which is
// normalized to end in "/api/".
func NewClient(apiURL, token string, opts Options) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	u, err := normalizeURL(apiURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		apiURL:     u,
		token:      token,
		client:     httpClient,
		log:        logger.With("component", "conduit"),
		cache:      opts.Cache,
		maxRetries: maxRetries,
	}, nil
}

func normalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("no Phabricator URL configured")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid Phabricator URL %q", raw)
	}
	p := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(p, "/api") {
		p += "/api"
	}
	u.Path = p + "/"
	return u.String(), nil
}

// APIURL returns the normalized endpoint.
func (c *Client) APIURL() string { return c.apiURL }

type envelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo *string         `json:"error_info"`
}

// Call invokes a Conduit method and decodes its result into out, which may
// be nil.
func (c *Client) Call(ctx context.Context, method string, params map[string]any, out any) error {
	args := make(map[string]any, len(params)+1)
	for k, v := range params {
		args[k] = v
	}
	args["__conduit__"] = map[string]string{"token": c.token}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshaling %s params: %w", method, err)
	}
	form := url.Values{
		"params":      {string(payload)},
		"output":      {"json"},
		"__conduit__": {"True"},
	}.Encode()

	c.log.Debug("conduit request", "method", method, "body", redact.Form(form))
	start := time.Now()

	var env envelope
	err = retryWithBackoff(ctx, c.maxRetries, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+method, strings.NewReader(form))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.log.Debug("conduit rate limited", "method", method)
			return &rateLimitError{}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &authError{message: redact.Secrets(string(body))}
		case resp.StatusCode >= 500:
			c.log.Debug("conduit server error", "method", method, "status", resp.StatusCode)
			return &serverError{statusCode: resp.StatusCode, body: redact.Secrets(string(body))}
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%s: HTTP %d: %s", method, resp.StatusCode, redact.Secrets(string(body)))
		}

		env = envelope{}
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("%s: parsing response: %w", method, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.log.Debug("conduit response", "method", method, "elapsed", time.Since(start))

	if env.ErrorCode != nil && *env.ErrorCode != "" {
		info := ""
		if env.ErrorInfo != nil {
			info = *env.ErrorInfo
		}
		return &APIError{Method: method, Code: *env.ErrorCode, Info: redact.Secrets(info)}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decoding result: %w", method, err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, "conduit.ping", nil, nil)
}

// User is the account behind the API token.
type User struct {
	PHID     string `json:"phid"`
	UserName string `json:"userName"`
	RealName string `json:"realName"`
}

// Whoami returns the account the token authenticates as.
func (c *Client) Whoami(ctx context.Context) (User, error) {
	var u User
	if err := c.Call(ctx, "user.whoami", nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}
