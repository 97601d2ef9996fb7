// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

/*
Package main is the entry point for the meraki-dashboard-exporter.

The exporter polls the Cisco Meraki Dashboard API on a per-tier cadence
and serves the results as Prometheus metrics under /metrics, with a
/health endpoint reporting whether any collector has succeeded recently.
It holds no persisted state.

# Application Architecture

The process runs three long-running components under a Suture v4
supervisor tree:

	RootSupervisor ("meraki-dashboard-exporter")
	├── DataSupervisor ("data-layer")
	│   └── Collector Manager (per-tier ticker loops over the catalog)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Metric reaper (expires stale label tuples)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (/metrics, /health)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and an optional
    config.yaml
 2. Logging: zerolog, JSON or console output
 3. Metrics Registry: the Prometheus registry every collector writes
    through
 4. Upstream Client: Meraki Dashboard API client, per-org circuit breakers
 5. Inventory Cache: single-flight, TTL-cached organizations/networks/devices
 6. Collector Catalog + Manager: every domain collector, grouped and
    scheduled by tier
 7. HTTP Server: go-chi router serving /metrics and /health
 8. Supervisor Tree: Suture v4 process supervision over the manager, the
    metric reaper and the HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins): environment variables, an optional config.yaml, then
built-in defaults. See internal/config for the full set of knobs,
including MERAKI__API_KEY, MERAKI__ORG_ID, UPDATE_INTERVALS__FAST/MEDIUM/SLOW,
COLLECTORS__ENABLED_COLLECTORS/DISABLE_COLLECTORS, and SERVER__PORT.

# Signal Handling

The process handles graceful shutdown on SIGINT and SIGTERM:

 1. Cancels the root context, stopping further collection ticks
 2. Gives the HTTP server its configured shutdown timeout to drain
 3. Reports any service that failed to stop within that timeout

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/scheduler: Collector Manager and its tier loops
  - internal/api: HTTP routing (/metrics, /health)
  - internal/collector/catalog: Domain collector taxonomy
*/
package main
