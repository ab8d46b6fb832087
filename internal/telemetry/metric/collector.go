package metric

import "runtime"

// Collector samples process and storage-level metrics into a Registry.
type Collector struct {
	reg *Registry
}

// NewCollector creates a collector that samples metrics into reg.
func NewCollector(reg *Registry) *Collector {
	return &Collector{reg: reg}
}

// SampleMemory reads the current heap usage and records it.
func (c *Collector) SampleMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.reg.MemoryUsage.Set(float64(m.Alloc))
}

// RecordWALSize records the current write-ahead log size in bytes.
func (c *Collector) RecordWALSize(bytes int64) {
	c.reg.WALSize.Set(float64(bytes))
}

// RecordSnapshotSize records the size of the most recent snapshot in bytes.
func (c *Collector) RecordSnapshotSize(bytes int64) {
	c.reg.SnapshotSize.Set(float64(bytes))
}
