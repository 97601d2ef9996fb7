// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package inventory caches the Upstream Client's organization, network, and
// device listings with a TTL and single-flight semantics: at most one
// concurrent upstream fetch per (organization, resource) key, with every
// other caller waiting on and sharing that fetch's outcome. Errors are
// never cached, so the next caller always retries against upstream.
package inventory
