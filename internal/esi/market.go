package esi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// MarketOrder mirrors the ESI market order response.
type MarketOrder struct {
	OrderID      int64           `json:"order_id"`
	TypeID       int32           `json:"type_id"`
	LocationID   int64           `json:"location_id"`
	SystemID     int32           `json:"system_id"`
	Price        decimal.Decimal `json:"price"`
	VolumeRemain int32           `json:"volume_remain"`
	IsBuyOrder   bool            `json:"is_buy_order"`
	RegionID     int32           `json:"-"` // set by us
}

// fetchRegionOrdersByType fetches every page of a region's orders for one
// type and returns them with the first page's Expires header. orderType is
// "sell", "buy" or "all". A failure on any page fails the whole fetch so
// callers never see a partial order book.
func (c *Client) fetchRegionOrdersByType(ctx context.Context, regionID, typeID int32, orderType string) ([]MarketOrder, string, error) {
	if orderType == "" {
		orderType = "all"
	}
	path := fmt.Sprintf("/markets/%d/orders/", regionID)
	q := url.Values{}
	q.Set("datasource", "tranquility")
	q.Set("order_type", orderType)
	q.Set("type_id", strconv.Itoa(int(typeID)))

	var all []MarketOrder
	header, err := getPaginated(ctx, c, path, q, func(page []MarketOrder) {
		for i := range page {
			page[i].RegionID = regionID
		}
		all = append(all, page...)
	})
	if err != nil {
		return nil, "", err
	}
	return all, header.Get("Expires"), nil
}
