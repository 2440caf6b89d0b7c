package travel

import (
	"errors"
	"strings"

	"dctravel/api"
)

// Migration order types.
const (
	TypeOutbound = 4 // outbound travel order
	TypeReturn   = 5 // return-to-origin order
)

// travelStatus values carried alongside migrationStatus on travel orders.
const (
	TravelStatusInTransit = 1
	TravelStatusEnded     = 3
)

// ErrNoEligibleOrders signals that no in-flight outbound order can be
// targeted by a return action. It is a distinct condition, not a failure:
// callers present an explanatory message instead of a generic error.
var ErrNoEligibleOrders = errors.New("no travel orders eligible for return")

// FindReturnable selects the orders a return action may target: outbound
// orders that have arrived or are still in transit. The numeric pair
// (migrationStatus, travelStatus) and the textual description are checked
// as an OR — the service does not guarantee the two representations stay
// consistent, so either one qualifies an order.
//
// Multiple matches are all returned; the caller must disambiguate, never
// silently take the first.
func FindReturnable(orders []api.RemoteOrder) ([]api.RemoteOrder, error) {
	var eligible []api.RemoteOrder
	for _, o := range orders {
		if o.MigrationType != TypeOutbound {
			continue
		}
		arrived := o.MigrationStatus == CodeArrived && o.TravelStatus == TravelStatusInTransit
		if arrived || strings.Contains(o.StatusDesc, markerInTransit) {
			eligible = append(eligible, o)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleOrders
	}
	return eligible, nil
}
