// Package telemetry defines the boundary with the passive behavioral
// recorder. The core never inspects the collected data; it only bundles
// snapshots into backend requests.
package telemetry

import "encoding/json"

// Snapshot is an immutable telemetry bundle assembled at trust-check and
// finalize time. Fingerprint and Events are opaque to the core and owned by
// the collector that produced them.
type Snapshot struct {
	Fingerprint     json.RawMessage
	Events          json.RawMessage
	InjectedScripts []string
	InjectedLinks   []string
}

// Collector supplies fingerprint and interaction data on demand. External
// collaborator: implementations wrap whatever recorder the host embeds.
type Collector interface {
	// Snapshot assembles the current telemetry bundle. It must not block on
	// user interaction and should degrade to empty fields rather than fail.
	Snapshot() Snapshot
}
