package telemetryfakes

import (
	"encoding/json"
	"sync"

	"github.com/cloudspacetechs/acidcheck/telemetry"
)

var _ telemetry.Collector = (*FakeCollector)(nil)

// FakeCollector returns a canned snapshot and counts calls.
type FakeCollector struct {
	Fingerprint     json.RawMessage
	Events          json.RawMessage
	InjectedScripts []string
	InjectedLinks   []string

	lock  sync.Mutex
	calls int
}

func NewFakeCollector() *FakeCollector {
	return &FakeCollector{
		Fingerprint: json.RawMessage(`{"userAgent":"fake"}`),
		Events:      json.RawMessage(`[]`),
	}
}

func (fc *FakeCollector) Snapshot() telemetry.Snapshot {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.calls++
	return telemetry.Snapshot{
		Fingerprint:     fc.Fingerprint,
		Events:          fc.Events,
		InjectedScripts: fc.InjectedScripts,
		InjectedLinks:   fc.InjectedLinks,
	}
}

func (fc *FakeCollector) SnapshotCalls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.calls
}
