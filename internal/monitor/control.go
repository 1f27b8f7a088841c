package monitor

import "sync/atomic"

// Control carries the only state shared between the sampling
// goroutine and its consumer: which device to sample and whether to
// stop. Both sides touch it through atomics only, so neither ever
// takes a lock. The zero value selects device 0 and is ready to use.
type Control struct {
	device   atomic.Int32
	shutdown atomic.Bool
}

// SetDevice selects the device index the worker samples next
func (c *Control) SetDevice(index int) {
	c.device.Store(int32(index))
}

// Device returns the currently selected device index
func (c *Control) Device() int {
	return int(c.device.Load())
}

// RequestShutdown asks the worker to exit after its current iteration
func (c *Control) RequestShutdown() {
	c.shutdown.Store(true)
}

// ShutdownRequested reports whether a shutdown has been requested
func (c *Control) ShutdownRequested() bool {
	return c.shutdown.Load()
}
