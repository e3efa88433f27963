// Package prometheus publishes service metrics through a
// client_golang Collector. Every scrape reads a fresh snapshot, so the hot
// path keeps its lock-free atomic counters.
package prometheus
