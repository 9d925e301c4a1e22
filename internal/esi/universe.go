package esi

import (
	"context"
	"fmt"
	"net/url"
)

// TypeInfo is the subset of /universe/types/{id}/ we use.
type TypeInfo struct {
	TypeID    int32  `json:"type_id"`
	Name      string `json:"name"`
	GroupID   int32  `json:"group_id"`
	Published bool   `json:"published"`
}

// GroupInfo is the subset of /universe/groups/{id}/ we use.
type GroupInfo struct {
	GroupID    int32  `json:"group_id"`
	Name       string `json:"name"`
	CategoryID int32  `json:"category_id"`
}

// SystemInfo is the subset of /universe/systems/{id}/ we use.
type SystemInfo struct {
	SystemID        int32   `json:"system_id"`
	Name            string  `json:"name"`
	SecurityStatus  float64 `json:"security_status"`
	ConstellationID int32   `json:"constellation_id"`
}

func universeQuery() url.Values {
	q := url.Values{}
	q.Set("datasource", "tranquility")
	q.Set("language", "en")
	return q
}

// FetchType fetches item metadata.
func (c *Client) FetchType(ctx context.Context, typeID int32) (TypeInfo, error) {
	var info TypeInfo
	err := c.GetJSON(ctx, fmt.Sprintf("/universe/types/%d/", typeID), universeQuery(), &info)
	return info, err
}

// FetchGroup fetches item group metadata.
func (c *Client) FetchGroup(ctx context.Context, groupID int32) (GroupInfo, error) {
	var info GroupInfo
	err := c.GetJSON(ctx, fmt.Sprintf("/universe/groups/%d/", groupID), universeQuery(), &info)
	return info, err
}

// FetchSystem fetches solar system metadata.
func (c *Client) FetchSystem(ctx context.Context, systemID int32) (SystemInfo, error) {
	var info SystemInfo
	err := c.GetJSON(ctx, fmt.Sprintf("/universe/systems/%d/", systemID), universeQuery(), &info)
	return info, err
}
