// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

/*
Package api provides the HTTP surface for the meraki-dashboard-exporter:
/metrics (Prometheus exposition) and /health (collector liveness),
optionally mounted under a configured path prefix.

Usage Example:

	router := api.NewRouter(reg, scheduler, unhealthyAfter, cfg.Server.PathPrefix, cfg.Server.EnableHealthCheck)
	http.ListenAndServe(addr, router.Handler())
*/
package api
