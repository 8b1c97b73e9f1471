// Package hrportal talks to the HR portal's REST API with a captured bearer
// token: today's worked hours and today's break time for one employee.
package hrportal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hrclock/internal/worktime"
)

const (
	DefaultBaseURL    = "https://api.zebihr.com"
	DefaultCustomerID = "238"

	endpointBreakTime = "break-time"
	endpointWorkHours = "today-work-hrs"
)

// ErrMissingIdentifier means the captured URL carries no employee id.
var ErrMissingIdentifier = errors.New("employee id not found in captured URL")

// FetchError is a transport, status or decoding failure on one endpoint.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

var employeePattern = regexp.MustCompile(`employee/(\d+)/`)

// EmployeeID extracts the employee id from a captured portal URL.
func EmployeeID(rawURL string) (string, error) {
	m := employeePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrMissingIdentifier, rawURL)
	}
	return m[1], nil
}

// DayWindow returns the first and last millisecond of now's calendar day, in
// now's location, as epoch milliseconds.
func DayWindow(now time.Time) (start, end int64) {
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), now.Location())
	return startOfDay.UnixMilli(), endOfDay.UnixMilli()
}

// Config holds the portal endpoint settings.
type Config struct {
	BaseURL    string
	CustomerID string
}

// Client issues the two read-only portal requests.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a Client. A nil httpClient uses one without a timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CustomerID == "" {
		cfg.CustomerID = DefaultCustomerID
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, cfg: cfg, logger: logger}
}

func (c *Client) employeeURL(employeeID string) string {
	return fmt.Sprintf("%s/customer/%s/employee/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.CustomerID), url.PathEscape(employeeID))
}

type breakTimeEntry struct {
	BreakHrs string `json:"breakHrs"`
}

type workHoursReply struct {
	WorkHrs string `json:"workHrs"`
}

// FetchBreakTime returns today's break time. ok is false when the portal
// reported no value.
func (c *Client) FetchBreakTime(ctx context.Context, authorization, employeeID string, start, end int64) (d worktime.Duration, ok bool, err error) {
	q := url.Values{}
	q.Set("employeeId", employeeID)
	q.Set("startDate", strconv.FormatInt(start, 10))
	q.Set("endDate", strconv.FormatInt(end, 10))
	q.Set("isEmployee", "true")
	target := c.employeeURL(employeeID) + "/" + endpointBreakTime + "?" + q.Encode()

	var entries []breakTimeEntry
	if err := c.getJSON(ctx, endpointBreakTime, target, authorization, &entries); err != nil {
		return 0, false, err
	}
	c.logger.Debug("break time reply", zap.Int("entries", len(entries)))
	if len(entries) == 0 || entries[0].BreakHrs == "" {
		return 0, false, nil
	}
	d, err = worktime.ParseDuration(entries[0].BreakHrs)
	if err != nil {
		return 0, false, fmt.Errorf("break time: %w", err)
	}
	return d, true, nil
}

// FetchWorkHours returns today's total worked time. ok is false when the
// portal reported no value.
func (c *Client) FetchWorkHours(ctx context.Context, authorization, employeeID string) (d worktime.Duration, ok bool, err error) {
	target := c.employeeURL(employeeID) + "/" + endpointWorkHours

	var reply workHoursReply
	if err := c.getJSON(ctx, endpointWorkHours, target, authorization, &reply); err != nil {
		return 0, false, err
	}
	c.logger.Debug("work hours reply", zap.String("workHrs", reply.WorkHrs))
	if reply.WorkHrs == "" {
		return 0, false, nil
	}
	d, err = worktime.ParseDuration(reply.WorkHrs)
	if err != nil {
		return 0, false, fmt.Errorf("work hours: %w", err)
	}
	return d, true, nil
}

// FetchSnapshot resolves the employee from sourceURL and runs both requests
// concurrently. Each request writes only its own slot of the snapshot.
func (c *Client) FetchSnapshot(ctx context.Context, sourceURL, authorization string, now time.Time) (worktime.Snapshot, error) {
	employeeID, err := EmployeeID(sourceURL)
	if err != nil {
		return worktime.Snapshot{}, err
	}
	start, end := DayWindow(now)

	snap := worktime.Snapshot{FetchedAt: now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, ok, err := c.FetchBreakTime(gctx, authorization, employeeID, start, end)
		if err != nil {
			return err
		}
		snap.Break, snap.HasBreak = d, ok
		return nil
	})
	g.Go(func() error {
		d, ok, err := c.FetchWorkHours(gctx, authorization, employeeID)
		if err != nil {
			return err
		}
		snap.Worked, snap.HasWorked = d, ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return worktime.Snapshot{}, err
	}
	return snap, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, target, authorization string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return nil
}
