package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the wrapper every service response arrives in.
type envelope struct {
	ReturnCode    int             `json:"return_code"`
	ReturnMessage string          `json:"return_message"`
	Data          json.RawMessage `json:"data"`
}

// flexString decodes a JSON value that the service emits sometimes as a
// string and sometimes as a bare number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

func (f flexString) String() string { return string(f) }

// Area is one data center with its member servers.
type Area struct {
	AreaID   flexString `json:"areaId"`
	AreaName string     `json:"areaName"`
	Groups   []Group    `json:"groups"`
}

// Group is a single game server within an area.
type Group struct {
	GroupID   flexString `json:"groupId"`
	GroupCode flexString `json:"groupCode"`
	GroupName string     `json:"groupName"`
}

// Role is a character on a specific (area, group) pair.
type Role struct {
	RoleID   flexString `json:"roleId"`
	RoleName string     `json:"roleName"`
}

// OrderDetail is one entry of an order's migrationDetailList.
type OrderDetail struct {
	RoleName string `json:"roleName"`
}

// RemoteOrder is a read-only snapshot of a server-side migration order.
// It is re-fetched on every poll; nothing in this client mutates it.
type RemoteOrder struct {
	OrderID         string        `json:"orderId"`
	MigrationType   int           `json:"migrationType"`
	MigrationStatus int           `json:"migrationStatus"`
	TravelStatus    int           `json:"travelStatus"`
	StatusDesc      string        `json:"migrationStatusDesc"`
	AreaID          flexString    `json:"areaId"`
	AreaName        string        `json:"areaName"`
	GroupID         flexString    `json:"groupId"`
	GroupName       string        `json:"groupName"`
	TargetAreaID    flexString    `json:"targetAreaId"`
	TargetAreaName  string        `json:"targetAreaName"`
	TargetGroupID   flexString    `json:"targetGroupId"`
	TargetGroupCode flexString    `json:"targetGroupCode"`
	TargetGroupName string        `json:"targetGroupName"`
	CreateTime      string        `json:"createTime"`
	Details         []OrderDetail `json:"migrationDetailList"`
}

// RoleName returns the role named in the order's detail list, if any.
func (o *RemoteOrder) RoleName() string {
	if len(o.Details) == 0 {
		return ""
	}
	return o.Details[0].RoleName
}

// OrderPage is one page of the migration order list.
type OrderPage struct {
	Orders     []RemoteOrder
	TotalPages int
	TotalCount int
}

// SubmitResponse is the normalized result of a submit call: an accepted
// order (OrderID non-empty), a result payload (HasResult true), or both —
// return submissions carry a result code and may also carry an order id.
type SubmitResponse struct {
	OrderID    string
	ResultCode int
	ResultMsg  string
	HasResult  bool
}

// Accepted reports whether the service created an order for this submission.
func (r *SubmitResponse) Accepted() bool { return r.OrderID != "" }

// decodeEnvelope unpacks the common response wrapper and rejects
// service-level errors (return_code != 0).
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.ReturnCode != 0 {
		return nil, fmt.Errorf("service error %d: %s", env.ReturnCode, env.ReturnMessage)
	}
	return env.Data, nil
}

// decodeEmbedded unpacks a field the service double-encodes: the value is a
// JSON string whose contents are themselves JSON. Some deployments return
// the inner value directly, so both shapes are accepted.
func decodeEmbedded(raw json.RawMessage, out interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		if inner == "" {
			return nil
		}
		return json.Unmarshal([]byte(inner), out)
	}
	return json.Unmarshal(raw, out)
}
