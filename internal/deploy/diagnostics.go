package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tempizhere/edgelink/internal/config"
	"github.com/tempizhere/edgelink/internal/provider"
)

// Статусы проверок диагностики
const (
	StatusOK   = "ok"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// DiagnosticCheck результат одной проверки
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	FixHint string `json:"fix_hint,omitempty"`
}

// Diagnostics результат MatchZone
type Diagnostics struct {
	Status string            `json:"status"`
	Checks []DiagnosticCheck `json:"checks"`
}

func (d *Diagnostics) add(c DiagnosticCheck) {
	d.Checks = append(d.Checks, c)
	switch {
	case c.Status == StatusFail:
		d.Status = StatusFail
	case c.Status == StatusWarn && d.Status == StatusOK:
		d.Status = StatusWarn
	}
}

// MatchZone определяет зону и аккаунт для хоста, сохраняет их и проверяет DNS и маршрут.
// Проверки после первой неудачной пропускаются.
func (o *Orchestrator) MatchZone(ctx context.Context) (Diagnostics, error) {
	diag := Diagnostics{Status: StatusOK}
	err := o.guard(ctx, "diagnostics", func(ctx context.Context, s config.Settings) error {
		if !o.secrets.Has(ctx) {
			diag.add(DiagnosticCheck{
				Name:    "token_required",
				Status:  StatusFail,
				Message: "Please configure your API token first.",
			})
			return nil
		}
		diag.add(DiagnosticCheck{Name: "token_required", Status: StatusOK, Message: "API token is configured."})

		zone, err := o.api.FindZoneForHost(ctx, s.Host)
		if err != nil {
			msg := "Could not find a zone for this domain."
			if !errors.Is(err, provider.ErrZoneNotFound) {
				msg = err.Error()
			}
			diag.add(DiagnosticCheck{
				Name:    "zone_match",
				Status:  StatusFail,
				Message: msg,
				FixHint: "Ensure the domain is added to your account and the API token has Zone:Read permission.",
			})
			return nil
		}

		st, err := o.state.LoadEdgeState(ctx)
		if err != nil {
			return err
		}
		st.ZoneID = zone.ZoneID
		st.ZoneName = zone.ZoneName
		st.AccountID = zone.AccountID
		if err := o.state.SaveEdgeState(ctx, st); err != nil {
			return err
		}
		diag.add(DiagnosticCheck{
			Name:    "zone_match",
			Status:  StatusOK,
			Message: fmt.Sprintf("Zone found: %s (ID: %s...)", zone.ZoneName, shortID(zone.ZoneID)),
		})

		diag.add(o.checkDNS(ctx, zone.ZoneID, s.Host))
		diag.add(o.checkRoute(ctx, zone.ZoneID, s))
		return nil
	})
	if err != nil {
		return diag, err
	}
	o.audit(ctx, "diagnostics", "Diagnostics finished with status "+diag.Status+".")
	return diag, nil
}

func (o *Orchestrator) checkDNS(ctx context.Context, zoneID, host string) DiagnosticCheck {
	c := DiagnosticCheck{Name: "proxied_dns"}
	dns, err := o.api.CheckDNSProxied(ctx, zoneID, host)
	switch {
	case err != nil:
		c.Status = StatusWarn
		c.Message = "Could not check DNS records: " + err.Error()
	case !dns.Found:
		c.Status = StatusWarn
		c.Message = "No DNS record found for this hostname."
		c.FixHint = "Ensure an A, AAAA, or CNAME record exists for this hostname."
	case dns.Proxied:
		c.Status = StatusOK
		c.Message = fmt.Sprintf("DNS record (%s) is proxied.", dns.Type)
	default:
		c.Status = StatusFail
		c.Message = fmt.Sprintf("DNS record (%s) is not proxied.", dns.Type)
		c.FixHint = "Enable the proxy for this record. Workers only run on proxied records."
	}
	return c
}

func (o *Orchestrator) checkRoute(ctx context.Context, zoneID string, s config.Settings) DiagnosticCheck {
	c := DiagnosticCheck{Name: "route_conflict"}
	pattern := s.RoutePattern()
	routes, err := o.api.ListRoutes(ctx, zoneID)
	if err != nil {
		c.Status = StatusWarn
		c.Message = "Could not list worker routes: " + err.Error()
		return c
	}
	existing, ok := provider.FindRouteByPattern(routes, pattern)
	switch {
	case !ok:
		c.Status = StatusOK
		c.Message = fmt.Sprintf("Route pattern %q is available.", pattern)
	case existing.Script == s.WorkerName:
		c.Status = StatusOK
		c.Message = "Route is already configured for this worker."
	default:
		c.Status = StatusWarn
		c.Message = fmt.Sprintf("Route pattern %q is already in use.", pattern)
		c.FixHint = "Another worker is using this route. Remove it first or use a different prefix."
	}
	return c
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
