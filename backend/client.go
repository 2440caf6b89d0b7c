// Package backend talks to the tool's companion backend: anonymous usage
// counters and version checks. Everything here is best-effort — failures
// are reported to the caller but must never block the travel flow.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Stat event types the backend aggregates.
const (
	StatAppStart = "app_start"
	StatTransfer = "cross_dc_transfer"
	StatReturn   = "cross_dc_return"
)

// Client is the companion backend client.
type Client struct {
	base    string
	version string
	http    *http.Client
	debugf  func(format string, args ...interface{})
}

// Options configures a backend Client.
type Options struct {
	BaseURL string
	Version string // client version reported to the version check
	Timeout time.Duration
	Debugf  func(format string, args ...interface{})
}

// New creates a backend client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	debugf := opts.Debugf
	if debugf == nil {
		debugf = func(string, ...interface{}) {}
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		version: opts.Version,
		http:    &http.Client{Timeout: timeout},
		debugf:  debugf,
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out interface{}) error {
	u := c.base + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	c.debugf("backend: GET %s -> %d", endpoint, resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend %s: status %d", endpoint, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// RecordStat reports one stat event. Transient failures are retried a
// couple of times with exponential backoff before giving up.
func (c *Client) RecordStat(ctx context.Context, statType string) error {
	q := url.Values{}
	q.Set("type", statType)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		var result struct {
			Success bool `json:"success"`
		}
		if err := c.getJSON(ctx, "/api/stats/record", q, &result); err != nil {
			return struct{}{}, err
		}
		if !result.Success {
			return struct{}{}, backoff.Permanent(fmt.Errorf("backend rejected stat %q", statType))
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return fmt.Errorf("record stat %q: %w", statType, err)
	}
	c.debugf("backend: recorded stat %s", statType)
	return nil
}

// VersionInfo is the outcome of a version check.
type VersionInfo struct {
	CurrentVersion string
	LatestVersion  string
	IsLatest       bool
	IsForceUpdate  bool
	IsSupported    bool // false means the running version is blocked
	UpdateURL      string
	Changelog      string
}

// CheckVersion asks the backend for the latest released version and
// compares it against the running one.
func (c *Client) CheckVersion(ctx context.Context) (*VersionInfo, error) {
	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Version       string `json:"version"`
			IsForceUpdate int    `json:"is_force_update"`
			DownloadURL   string `json:"download_url"`
			ReleaseNotes  string `json:"release_notes"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/version/latest", nil, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("version check rejected")
	}

	latest := result.Data.Version
	if latest == "" {
		latest = c.version
	}
	info := &VersionInfo{
		CurrentVersion: c.version,
		LatestVersion:  latest,
		IsForceUpdate:  result.Data.IsForceUpdate != 0,
		UpdateURL:      result.Data.DownloadURL,
		Changelog:      result.Data.ReleaseNotes,
	}
	info.IsLatest = compareVersions(c.version, latest) >= 0
	// An old version stays usable unless the backend forces the update.
	info.IsSupported = info.IsLatest || !info.IsForceUpdate
	return info, nil
}

// compareVersions compares dotted version strings on their first three
// numeric parts: 1 if a > b, -1 if a < b, 0 if equal or unparseable.
func compareVersions(a, b string) int {
	pa, okA := parseVersion(a)
	pb, okB := parseVersion(b)
	if !okA || !okB {
		return 0
	}
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] > pb[i] {
			return 1
		}
		if pa[i] < pb[i] {
			return -1
		}
	}
	return 0
}

func parseVersion(v string) ([]int, bool) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		nums = append(nums, n)
	}
	return nums, len(nums) > 0
}
