package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Default endpoint paths on the travel service.
const (
	pathPageInit        = "/api/orderserivce/pageInit"
	pathGroupList       = "/api/orderserivce/queryGroupListTravelSource"
	pathGroupListReturn = "/api/orderserivce/queryGroupListCrossSource"
	pathRoleList        = "/api/gmallgateway/queryRoleList4Migration"
	pathTravelOrder     = "/api/orderserivce/travelOrder"
	pathOrderStatus     = "/api/gmallgateway/queryOrderStatus"
	pathTravelBack      = "/api/orderserivce/travelBack"
	pathMigrationOrders = "/api/orderserivce/queryMigrationOrders"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	AppID     string
	UserAgent string
	ProxyURL  string // empty means direct
	Timeout   time.Duration
	Debugf    func(format string, args ...interface{})
}

// Client talks to the travel service. The authenticated session (cookies)
// is externally owned; the client never refreshes it.
type Client struct {
	base      *url.URL
	appID     string
	userAgent string
	http      *http.Client
	debugf    func(format string, args ...interface{})
}

// NewClient creates a service client with an empty cookie session.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	debugf := opts.Debugf
	if debugf == nil {
		debugf = func(string, ...interface{}) {}
	}

	return &Client{
		base:      base,
		appID:     opts.AppID,
		userAgent: opts.UserAgent,
		http: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   timeout,
		},
		debugf: debugf,
	}, nil
}

// SetCookies installs the externally-acquired session cookies.
func (c *Client) SetCookies(cookies map[string]string) {
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.http.Jar.SetCookies(c.base, list)
}

// get performs a GET against path with query params and returns the
// envelope's data payload.
func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	u := *c.base
	u.Path = path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	c.debugf("api: GET %s", u.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.debugf("api: %s -> %d (%d bytes)", path, resp.StatusCode, len(body))

	data, err := decodeEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// FetchAreaList returns the areas (and their servers) a transfer can start
// from.
func (c *Client) FetchAreaList(ctx context.Context) ([]Area, error) {
	return c.fetchGroupList(ctx, pathGroupList)
}

// FetchReturnAreaList returns the areas usable as the current location of a
// return action.
func (c *Client) FetchReturnAreaList(ctx context.Context) ([]Area, error) {
	return c.fetchGroupList(ctx, pathGroupListReturn)
}

func (c *Client) fetchGroupList(ctx context.Context, path string) ([]Area, error) {
	q := url.Values{}
	q.Set("appId", c.appID)
	data, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}

	var payload struct {
		GroupList json.RawMessage `json:"groupList"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode group list: %w", err)
	}
	// groupList is a JSON string wrapping the actual array.
	var areas []Area
	if err := decodeEmbedded(payload.GroupList, &areas); err != nil {
		return nil, fmt.Errorf("decode group list: %w", err)
	}
	return areas, nil
}

// FetchRoleList returns the characters on one (area, group) pair.
func (c *Client) FetchRoleList(ctx context.Context, areaID, groupID string) ([]Role, error) {
	q := url.Values{}
	q.Set("appId", c.appID)
	q.Set("areaId", areaID)
	q.Set("groupId", groupID)
	data, err := c.get(ctx, pathRoleList, q)
	if err != nil {
		return nil, err
	}

	var payload struct {
		RoleList json.RawMessage `json:"roleList"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode role list: %w", err)
	}
	// roleList is sometimes an array, sometimes a JSON string wrapping one.
	var roles []Role
	if err := decodeEmbedded(payload.RoleList, &roles); err != nil {
		return nil, fmt.Errorf("decode role list: %w", err)
	}
	return roles, nil
}

// PageInit triggers the service's page initialization hook. Best-effort: the
// caller may ignore the error, failure here never blocks the flow.
func (c *Client) PageInit(ctx context.Context, migrationType int) error {
	q := url.Values{}
	q.Set("migrationType", fmt.Sprintf("%d", migrationType))
	_, err := c.get(ctx, pathPageInit, q)
	return err
}

// TransferParams carries the validated selections of an outbound transfer.
type TransferParams struct {
	AreaID   string
	AreaName string

	GroupID   string
	GroupCode string
	GroupName string

	TargetAreaID   string
	TargetAreaName string

	TargetGroupID   string
	TargetGroupCode string
	TargetGroupName string

	RoleID   string
	RoleName string
}

// SubmitTransfer submits an outbound transfer order.
func (c *Client) SubmitTransfer(ctx context.Context, p TransferParams) (*SubmitResponse, error) {
	roleList, err := json.Marshal([]map[string]interface{}{{
		"roleId":   p.RoleID,
		"roleName": p.RoleName,
		"key":      0,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode role list: %w", err)
	}

	q := url.Values{}
	q.Set("appId", c.appID)
	q.Set("areaId", p.AreaID)
	q.Set("areaName", p.AreaName)
	q.Set("groupId", p.GroupID)
	q.Set("groupCode", p.GroupCode)
	q.Set("groupName", p.GroupName)
	q.Set("productId", "1")
	q.Set("productNum", "1")
	q.Set("migrationType", "4")
	q.Set("targetArea", p.TargetAreaID)
	q.Set("targetAreaName", p.TargetAreaName)
	q.Set("targetGroupId", p.TargetGroupID)
	q.Set("targetGroupCode", p.TargetGroupCode)
	q.Set("targetGroupName", p.TargetGroupName)
	q.Set("roleList", string(roleList))
	q.Set("isMigrationTimes", "0")

	data, err := c.get(ctx, pathTravelOrder, q)
	if err != nil {
		return nil, err
	}
	return decodeSubmit(data)
}

// ReturnParams identifies the in-flight order to reverse and where the
// character currently is.
type ReturnParams struct {
	TravelOrderID string
	GroupID       string
	GroupCode     string
	GroupName     string
}

// SubmitReturn submits a return-to-origin request against an existing
// travel order.
func (c *Client) SubmitReturn(ctx context.Context, p ReturnParams) (*SubmitResponse, error) {
	q := url.Values{}
	q.Set("travelOrderId", p.TravelOrderID)
	q.Set("groupId", p.GroupID)
	q.Set("groupCode", p.GroupCode)
	q.Set("groupName", p.GroupName)

	data, err := c.get(ctx, pathTravelBack, q)
	if err != nil {
		return nil, err
	}
	return decodeSubmit(data)
}

func decodeSubmit(data json.RawMessage) (*SubmitResponse, error) {
	payload := struct {
		OrderID    string     `json:"orderId"`
		ResultCode *int       `json:"resultCode"`
		ResultMsg  flexString `json:"resultMsg"`
	}{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}

	resp := &SubmitResponse{
		OrderID:   payload.OrderID,
		ResultMsg: payload.ResultMsg.String(),
	}
	if payload.ResultCode != nil {
		resp.ResultCode = *payload.ResultCode
		resp.HasResult = true
	}
	if resp.OrderID == "" && !resp.HasResult {
		return nil, fmt.Errorf("submit response carried neither order id nor result code")
	}
	return resp, nil
}

// CheckOrderStatus returns the numeric migration status of one order.
// A migrationStatus missing from the payload is reported as -1, matching
// the service's own convention for a failed precheck.
func (c *Client) CheckOrderStatus(ctx context.Context, orderID string) (int, error) {
	q := url.Values{}
	q.Set("orderId", orderID)
	data, err := c.get(ctx, pathOrderStatus, q)
	if err != nil {
		return 0, err
	}

	payload := struct {
		MigrationStatus int `json:"migrationStatus"`
		OrderStatus     int `json:"orderStatus"`
	}{MigrationStatus: -1, OrderStatus: -1}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("decode order status: %w", err)
	}
	c.debugf("api: order %s migrationStatus=%d orderStatus=%d", orderID, payload.MigrationStatus, payload.OrderStatus)
	return payload.MigrationStatus, nil
}

// ListOrders returns one page of the account's migration orders.
func (c *Client) ListOrders(ctx context.Context, pageIndex, pageNum int) (*OrderPage, error) {
	q := url.Values{}
	q.Set("appId", c.appID)
	q.Set("pageIndex", fmt.Sprintf("%d", pageIndex))
	q.Set("pageNum", fmt.Sprintf("%d", pageNum))
	data, err := c.get(ctx, pathMigrationOrders, q)
	if err != nil {
		return nil, err
	}

	var payload struct {
		OrderList    json.RawMessage `json:"orderlist"`
		TotalPageNum int             `json:"totalPageNum"`
		TotalCount   int             `json:"totalCount"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode order list: %w", err)
	}

	page := &OrderPage{
		TotalPages: payload.TotalPageNum,
		TotalCount: payload.TotalCount,
	}
	// orderlist is a JSON string wrapping the actual array. A malformed
	// list degrades to an empty page rather than an error.
	if err := decodeEmbedded(payload.OrderList, &page.Orders); err != nil {
		c.debugf("api: decode orderlist: %v", err)
		page.Orders = nil
	}
	return page, nil
}
