package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.uber.org/ratelimit"

	"github.com/Ramsey-B/iris/pkg/httpclient"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const (
	DefaultUsersPageSize       = 200
	DefaultAppsPageSize        = 200
	DefaultAssignmentsPageSize = 500
)

// Config holds what a client needs to reach one provider org.
type Config struct {
	Domain              string
	Token               string
	UsersPageSize       int
	AppsPageSize        int
	AssignmentsPageSize int
}

// Client reads users, applications and assignments from an Okta-shaped API.
// It never writes to the provider.
type Client struct {
	config  Config
	baseURL string
	http    *httpclient.Client
	limiter ratelimit.Limiter
	logger  ectologger.Logger
}

// NewLimiter returns a limiter allowing perSecond requests, or an unlimited
// one when perSecond is not positive.
func NewLimiter(perSecond int) ratelimit.Limiter {
	if perSecond <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(perSecond)
}

// NewClient creates a client. The limiter may be shared between clients so
// the budget holds across runs.
func NewClient(config Config, http *httpclient.Client, limiter ratelimit.Limiter, logger ectologger.Logger) *Client {
	if config.UsersPageSize <= 0 {
		config.UsersPageSize = DefaultUsersPageSize
	}
	if config.AppsPageSize <= 0 {
		config.AppsPageSize = DefaultAppsPageSize
	}
	if config.AssignmentsPageSize <= 0 {
		config.AssignmentsPageSize = DefaultAssignmentsPageSize
	}
	if limiter == nil {
		limiter = ratelimit.NewUnlimited()
	}

	return &Client{
		config:  config,
		baseURL: BaseURL(config.Domain),
		http:    http,
		limiter: limiter,
		logger:  logger,
	}
}

// BaseURL derives the API root from a configured domain. A domain that
// already carries a scheme keeps it.
func BaseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain + "/api/v1"
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	ctx, span := tracing.StartSpan(ctx, "ProviderClient.ListUsers")
	defer span.End()

	users, err := list[User](ctx, c, c.pageURL("/users", c.config.UsersPageSize))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return users, nil
}

func (c *Client) ListApplications(ctx context.Context) ([]Application, error) {
	ctx, span := tracing.StartSpan(ctx, "ProviderClient.ListApplications")
	defer span.End()

	apps, err := list[Application](ctx, c, c.pageURL("/apps", c.config.AppsPageSize))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return apps, nil
}

func (c *Client) ListApplicationAssignments(ctx context.Context, appID string) ([]AppUser, error) {
	ctx, span := tracing.StartSpan(ctx, "ProviderClient.ListApplicationAssignments")
	defer span.End()

	path := "/apps/" + url.PathEscape(appID) + "/users"
	assignments, err := list[AppUser](ctx, c, c.pageURL(path, c.config.AssignmentsPageSize))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return assignments, nil
}

func (c *Client) pageURL(path string, limit int) string {
	return fmt.Sprintf("%s%s?limit=%d", c.baseURL, path, limit)
}

type record interface {
	User | Application | AppUser
}

// list follows rel="next" links until the provider stops returning one.
func list[T record](ctx context.Context, c *Client, next string) ([]T, error) {
	var (
		results []T
		seen    = map[string]bool{}
	)

	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[next] {
			c.logger.WithContext(ctx).WithField("url", next).Warn("provider returned a pagination cycle, stopping")
			break
		}
		seen[next] = true

		page, link, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}

		var records []T
		if err := json.Unmarshal(page, &records); err != nil {
			return nil, &Error{URL: next, Err: fmt.Errorf("failed to decode page: %w", err)}
		}
		if err := attachRaw(records, page); err != nil {
			return nil, &Error{URL: next, Err: err}
		}

		results = append(results, records...)

		current := next
		if next, err = c.followable(link); err != nil {
			c.logger.WithContext(ctx).WithError(err).WithField("url", current).Warn("provider returned a next link outside its own host")
			return nil, &Error{URL: current, Err: err}
		}
	}

	return results, nil
}

// followable resolves a next link against the API root and rejects any that
// would carry the token to a different scheme or host.
func (c *Client) followable(link string) (string, error) {
	if link == "" {
		return "", nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	next, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid next link: %w", err)
	}
	next = base.ResolveReference(next)
	if !strings.EqualFold(next.Scheme, base.Scheme) || !strings.EqualFold(next.Host, base.Host) {
		return "", fmt.Errorf("refusing to follow next link to %s://%s, expected %s://%s", next.Scheme, next.Host, base.Scheme, base.Host)
	}
	return next.String(), nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, string, error) {
	waitStart := time.Now()
	c.limiter.Take()
	metrics.RecordRateLimitWait(time.Since(waitStart).Seconds())

	resp, err := c.http.Get(ctx, pageURL, map[string]string{
		"Authorization": "SSWS " + c.config.Token,
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, "", &Error{URL: pageURL, Err: err}
	}

	if !resp.IsSuccess() {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"url":         pageURL,
			"status_code": resp.StatusCode,
		}).Warn("provider returned a non-success status")
		return nil, "", newStatusError(resp.StatusCode, pageURL, resp.Body)
	}

	return resp.Body, resp.NextLink(), nil
}

// attachRaw keeps the undecoded form of users and applications so attribute
// expressions can reach fields the typed struct does not model.
func attachRaw[T record](records []T, page []byte) error {
	var raws []map[string]any
	if err := json.Unmarshal(page, &raws); err != nil {
		return fmt.Errorf("failed to decode page: %w", err)
	}
	for i := range records {
		if i >= len(raws) {
			break
		}
		switch r := any(&records[i]).(type) {
		case *User:
			r.Raw = raws[i]
		case *Application:
			r.Raw = raws[i]
		}
	}
	return nil
}
