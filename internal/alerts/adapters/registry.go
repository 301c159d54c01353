package adapters

import "github.com/akmatori/alertsieve/internal/alerts"

// All returns one adapter per supported source, keyed by webhook path segment
func All() map[string]alerts.AlertAdapter {
	registry := make(map[string]alerts.AlertAdapter)
	for _, a := range []alerts.AlertAdapter{
		NewPagerDutyAdapter(),
		NewJiraAdapter(),
		NewIcingaAdapter(),
		NewGenericAdapter(),
		NewAlertmanagerAdapter(),
	} {
		registry[a.GetSourceType()] = a
	}
	return registry
}
