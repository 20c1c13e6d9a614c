// Package health implements the probes that gate route targets into
// service.
//
// A Checker performs one probe (HTTP status or TCP connect) and a Status
// accumulates results: targets start unhealthy, one passing probe makes
// them healthy, and Config.Retries consecutive failures take them back out.
// The router's watcher drives these on an independent timer per target.
package health
