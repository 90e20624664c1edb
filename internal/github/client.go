package github

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
	"time"

	"github.com/sirupsen/logrus"
)

const (
	searchUsersURL = "https://api.github.com/search/users"
	userDetailURL  = "https://api.github.com/users/%s"
	graphqlURL     = "https://api.github.com/graphql"

	defaultMaxAttempts = 5
	requestTimeout     = 10 * time.Second

	// minimum wait once the primary quota is exhausted, plus a safety
	// margin so we do not wake up just before the window actually resets
	primaryLimitMinWait = 10 * time.Second
	primaryLimitMargin  = 3 * time.Second

	// fallback when a 429 carries no Retry-After header
	defaultRetryAfter = 5 * time.Second
)

var (
	// ErrNotFound means the remote resource does not exist; callers treat
	// the item as absent and never retry.
	ErrNotFound = errors.New("resource not found")
	// ErrRetriesExhausted means the bounded attempt budget ran out; callers
	// treat the item as unavailable, never as a fatal condition.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// substitute scripted responses.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries the client's collaborators. Zero fields get defaults.
type Config struct {
	Token       string
	Query       string
	MaxAttempts int
	HTTPClient  Doer
	Logger      *logrus.Logger
	Sleep       func(time.Duration)
	Now         func() time.Time
}

// Client talks to the GitHub search, user detail and GraphQL endpoints with
// unified retry and backoff handling for rate-limit and transient failures.
type Client struct {
	token       string
	query       string
	maxAttempts int
	http        Doer
	logger      *logrus.Logger
	sleep       func(time.Duration)
	now         func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Query == "" {
		cfg.Query = defaultSearchQuery
	}
	return &Client{
		token:       cfg.Token,
		query:       cfg.Query,
		maxAttempts: cfg.MaxAttempts,
		http:        cfg.HTTPClient,
		logger:      cfg.Logger,
		sleep:       cfg.Sleep,
		now:         cfg.Now,
	}
}

// Authenticated reports whether a bearer token is configured.
func (c *Client) Authenticated() bool { return c.token != "" }

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeNotFound
	outcomePrimaryLimited
	outcomeSecondaryLimited
	outcomeTransient
)

// classification is the client's view of a single call outcome, carrying
// just enough server metadata for the retry decision.
type classification struct {
	kind       outcomeKind
	resetAt    time.Time     // primary limit: when the quota window resets
	retryAfter time.Duration // secondary limit: server-requested pause
}

func classify(resp *http.Response, body []byte) classification {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return classification{kind: outcomeNotFound}
	case resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "rate limit"):
		var resetAt time.Time
		if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
				resetAt = time.Unix(ts, 0)
			}
		}
		return classification{kind: outcomePrimaryLimited, resetAt: resetAt}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return classification{kind: outcomeSecondaryLimited, retryAfter: retryAfter}
	case resp.StatusCode >= 400:
		return classification{kind: outcomeTransient}
	default:
		return classification{kind: outcomeOK}
	}
}

// decide is the whole retry policy as a pure function: given an outcome and
// the zero-based attempt number, it returns how long to wait and whether to
// try again. No clock reads, no sleeping, no network.
func decide(cl classification, attempt int, now time.Time) (time.Duration, bool) {
	switch cl.kind {
	case outcomePrimaryLimited:
		wait := cl.resetAt.Sub(now)
		if wait < primaryLimitMinWait {
			wait = primaryLimitMinWait
		}
		return wait + primaryLimitMargin, true
	case outcomeSecondaryLimited:
		retryAfter := cl.retryAfter
		if retryAfter <= 0 {
			retryAfter = defaultRetryAfter
		}
		return retryAfter, true
	case outcomeTransient:
		return time.Duration(1<<attempt) * time.Second, true
	default:
		return 0, false
	}
}

// do executes a call with retries and decodes the response into out.
// It returns ErrNotFound for a 404 and ErrRetriesExhausted once the attempt
// budget is spent; every other outcome is retried per decide.
func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		cl, err := c.attempt(ctx, method, url, reqBody, out)
		if err == nil && cl.kind == outcomeOK {
			return nil
		}
		if cl.kind == outcomeNotFound {
			return ErrNotFound
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait, retry := decide(cl, attempt, c.now())
		if !retry {
			break
		}
		c.logger.Warnf("%s %s failed (attempt %d/%d): %s, retrying in %s",
			method, url, attempt+1, c.maxAttempts, describe(cl, err), wait)
		c.sleep(wait)
	}

	c.logger.Warnf("%s %s failed after %d attempts", method, url, c.maxAttempts)
	return ErrRetriesExhausted
}

func (c *Client) attempt(ctx context.Context, method, url string, reqBody []byte, out any) (classification, error) {
	var body io.Reader
	if reqBody != nil {
		body = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return classification{kind: outcomeTransient}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classification{kind: outcomeTransient}, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return classification{kind: outcomeTransient}, err
	}

	cl := classify(resp, data)
	if cl.kind != outcomeOK {
		return cl, nil
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			// a malformed body counts as a transient failure
			return classification{kind: outcomeTransient}, err
		}
	}
	return cl, nil
}

func describe(cl classification, err error) string {
	switch cl.kind {
	case outcomePrimaryLimited:
		return "primary rate limit exceeded"
	case outcomeSecondaryLimited:
		return "secondary rate limit (429)"
	default:
		if err != nil {
			return err.Error()
		}
		return "transient error"
	}
}
