package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dctravel/api"
	"dctravel/config"
	"dctravel/travel"
)

// runTransfer resolves the configured selections against the live catalog
// and drives the transfer to its outcome.
func runTransfer(ctx context.Context, orch *travel.Orchestrator, client *api.Client, cfg *config.Config) (travel.Outcome, error) {
	sel := cfg.Transfer
	if sel.SourceArea == "" || sel.SourceServer == "" || sel.Role == "" ||
		sel.TargetArea == "" || sel.TargetServer == "" {
		return travel.Outcome{}, errors.New("transfer selections incomplete: set transfer.source_area, source_server, role, target_area and target_server")
	}

	areas, err := client.FetchAreaList(ctx)
	if err != nil {
		return travel.Outcome{}, fmt.Errorf("fetch area list: %w", err)
	}
	log.Printf("fetched %d areas", len(areas))

	srcArea, err := findArea(areas, sel.SourceArea)
	if err != nil {
		return travel.Outcome{}, err
	}
	srcServer, err := findGroup(srcArea, sel.SourceServer)
	if err != nil {
		return travel.Outcome{}, err
	}
	tgtArea, err := findArea(areas, sel.TargetArea)
	if err != nil {
		return travel.Outcome{}, err
	}
	if tgtArea.AreaID == srcArea.AreaID {
		return travel.Outcome{}, fmt.Errorf("target area %q is the source area; transfers must cross areas", sel.TargetArea)
	}
	tgtServer, err := findGroup(tgtArea, sel.TargetServer)
	if err != nil {
		return travel.Outcome{}, err
	}

	roles, err := client.FetchRoleList(ctx, srcArea.AreaID.String(), srcServer.GroupID.String())
	if err != nil {
		return travel.Outcome{}, fmt.Errorf("fetch role list: %w", err)
	}
	role, err := findRole(roles, srcServer.GroupName, sel.Role)
	if err != nil {
		return travel.Outcome{}, err
	}

	log.Printf("transfer: %s from %s/%s to %s/%s",
		role.RoleName, srcArea.AreaName, srcServer.GroupName, tgtArea.AreaName, tgtServer.GroupName)

	return orch.RunTransfer(ctx, client, travel.TransferRequest{
		SourceArea:   srcArea,
		SourceServer: srcServer,
		TargetArea:   tgtArea,
		TargetServer: tgtServer,
		Role:         role,
	}), nil
}

// runReturn locates the in-flight travel order, resolves the character's
// current location and drives the return to its outcome.
func runReturn(ctx context.Context, orch *travel.Orchestrator, client *api.Client, cfg *config.Config) (travel.Outcome, error) {
	page, err := client.ListOrders(ctx, 1, 10)
	if err != nil {
		return travel.Outcome{}, fmt.Errorf("fetch order list: %w", err)
	}

	eligible, err := travel.FindReturnable(page.Orders)
	if errors.Is(err, travel.ErrNoEligibleOrders) {
		return travel.Outcome{}, errors.New("no travel order is in transit or arrived; nothing to return")
	}
	if err != nil {
		return travel.Outcome{}, err
	}

	order, err := selectOrder(eligible, cfg.Return.OrderID)
	if err != nil {
		return travel.Outcome{}, err
	}
	log.Printf("return: order %s (%s, %s/%s -> %s/%s, %s)",
		order.OrderID, order.RoleName(),
		order.AreaName, order.GroupName,
		order.TargetAreaName, order.TargetGroupName, order.StatusDesc)

	areas, err := client.FetchReturnAreaList(ctx)
	if err != nil {
		return travel.Outcome{}, fmt.Errorf("fetch returnable areas: %w", err)
	}
	curArea, curServer, err := locateCurrent(areas, order)
	if err != nil {
		return travel.Outcome{}, err
	}
	log.Printf("current location: %s/%s", curArea.AreaName, curServer.GroupName)

	return orch.RunReturn(ctx, client, travel.ReturnRequest{
		TravelOrderID:  order.OrderID,
		RoleName:       order.RoleName(),
		CurrentArea:    curArea,
		CurrentServer:  curServer,
		HomeAreaName:   order.AreaName,
		HomeServerName: order.GroupName,
	}), nil
}

// selectOrder picks the order a return targets. One eligible order selects
// itself; several require an explicit return.order_id — never the first one
// by default.
func selectOrder(eligible []api.RemoteOrder, wanted string) (api.RemoteOrder, error) {
	if wanted != "" {
		for _, o := range eligible {
			if o.OrderID == wanted {
				return o, nil
			}
		}
		return api.RemoteOrder{}, fmt.Errorf("order %q is not among the %d eligible orders", wanted, len(eligible))
	}
	if len(eligible) == 1 {
		return eligible[0], nil
	}

	var lines []string
	for _, o := range eligible {
		lines = append(lines, fmt.Sprintf("%s (%s at %s/%s)",
			o.OrderID, o.RoleName(), o.TargetAreaName, o.TargetGroupName))
	}
	return api.RemoteOrder{}, fmt.Errorf("%d orders are eligible for return, set return.order_id to one of: %s",
		len(eligible), strings.Join(lines, "; "))
}

// locateCurrent resolves the order's destination against the returnable
// server catalog, matching by id first and display name as fallback.
func locateCurrent(areas []api.Area, ord api.RemoteOrder) (api.Area, api.Group, error) {
	for _, a := range areas {
		if !(a.AreaID != "" && a.AreaID == ord.TargetAreaID) && a.AreaName != ord.TargetAreaName {
			continue
		}
		for _, g := range a.Groups {
			if (g.GroupID != "" && g.GroupID == ord.TargetGroupID) || g.GroupName == ord.TargetGroupName {
				return a, g, nil
			}
		}
		return api.Area{}, api.Group{}, fmt.Errorf("server %q not found in returnable area %q", ord.TargetGroupName, a.AreaName)
	}
	return api.Area{}, api.Group{}, fmt.Errorf("order destination %s/%s is not in the returnable catalog",
		ord.TargetAreaName, ord.TargetGroupName)
}

// findArea looks an area up by display name.
func findArea(areas []api.Area, name string) (api.Area, error) {
	for _, a := range areas {
		if a.AreaName == name {
			return a, nil
		}
	}
	var names []string
	for _, a := range areas {
		names = append(names, a.AreaName)
	}
	return api.Area{}, fmt.Errorf("area %q not found (have: %s)", name, strings.Join(names, ", "))
}

// findGroup looks a server up by display name within an area.
func findGroup(area api.Area, name string) (api.Group, error) {
	for _, g := range area.Groups {
		if g.GroupName == name {
			return g, nil
		}
	}
	var names []string
	for _, g := range area.Groups {
		names = append(names, g.GroupName)
	}
	return api.Group{}, fmt.Errorf("server %q not found in %s (have: %s)", name, area.AreaName, strings.Join(names, ", "))
}

// findRole looks a character up by display name.
func findRole(roles []api.Role, serverName, name string) (api.Role, error) {
	for _, r := range roles {
		if r.RoleName == name {
			return r, nil
		}
	}
	var names []string
	for _, r := range roles {
		names = append(names, r.RoleName)
	}
	return api.Role{}, fmt.Errorf("role %q not found on %s (have: %s)", name, serverName, strings.Join(names, ", "))
}
