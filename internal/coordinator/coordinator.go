// Package coordinator runs the refresh cycle: discover collectors, fan out
// over their devices, and merge plant-summary data into the per-device
// snapshots.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// controlRefreshEvery is how many cycles pass between control-field
// refreshes. The fields change only when someone reconfigures an inverter,
// so they are fetched on the first cycle and every Nth after that.
const controlRefreshEvery = 10

// API is the slice of the cloud client the coordinator needs.
type API interface {
	GetCollectors(ctx context.Context) ([]model.Collector, []model.Project, error)
	GetCollectorDevices(ctx context.Context, pn string) ([]model.Device, error)
	GetDeviceLastData(ctx context.Context, pn string, devcode, devaddr int, sn string) ([]model.DataPoint, error)
	GetPrimaryProjectID(ctx context.Context) (int64, error)
	GetDeviceSummaryData(ctx context.Context, pid int64) (map[string]api.SummaryEntry, error)
	GetDeviceControlFields(ctx context.Context, pn string, devcode, devaddr int, sn string) (map[string]api.ControlField, error)
	GetDeviceParameters(ctx context.Context, pn string, devcode, devaddr int, sn string) (map[string]api.Parameter, error)
}

// ControlDetails caches the control fields and parameters of one device,
// refreshed on a slower cadence than telemetry. FetchError holds the last
// failure so diagnostics can surface it without failing a cycle.
type ControlDetails struct {
	Fields     map[string]api.ControlField
	Params     map[string]api.Parameter
	FetchError string
}

// CycleStats summarizes one refresh for logging and metrics.
type CycleStats struct {
	Collectors int
	Devices    int
	Skipped    int
}

// Coordinator owns the refresh cycle for one account.
type Coordinator struct {
	api        API
	maxWorkers int

	mu         sync.Mutex
	data       map[string]*model.DeviceSnapshot
	control    map[string]ControlDetails
	cycleCount int
	lastStats  CycleStats
}

// New builds a coordinator; workers bounds the per-collector fan-out.
func New(client API, workers int) *Coordinator {
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{
		api:        client,
		maxWorkers: workers,
		data:       make(map[string]*model.DeviceSnapshot),
		control:    make(map[string]ControlDetails),
	}
}

// Refresh runs one full cycle and returns the fresh snapshot map. Discovery
// failure fails the cycle; individual collector or device failures are
// skipped and only fail the cycle when nothing at all was fetched.
func (c *Coordinator) Refresh(ctx context.Context) (map[string]*model.DeviceSnapshot, error) {
	collectors, _, err := c.api.GetCollectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector discovery: %w", err)
	}

	snapshots, skipped := c.gatherDeviceData(ctx, collectors)
	if len(snapshots) == 0 && len(skipped) > 0 {
		return nil, &api.AggregateError{Op: "refresh cycle", Reasons: skipped}
	}

	if len(collectors) > 0 {
		c.mergeSummaryData(ctx, snapshots)
	}

	c.mu.Lock()
	refreshControls := c.cycleCount%controlRefreshEvery == 0
	c.cycleCount++
	c.data = snapshots
	c.lastStats = CycleStats{
		Collectors: len(collectors),
		Devices:    len(snapshots),
		Skipped:    len(skipped),
	}
	c.mu.Unlock()

	if refreshControls {
		c.refreshControlDetails(ctx, snapshots)
	}

	log.Printf("coordinator: cycle complete, %d devices from %d collectors (%d skipped)",
		len(snapshots), len(collectors), len(skipped))
	return snapshots, nil
}

// gatherDeviceData fans out over collectors, fetching each collector's
// device list and then every device's latest data. Failures are downgraded
// to recorded skips so one bad collector never hides the rest.
func (c *Coordinator) gatherDeviceData(ctx context.Context, collectors []model.Collector) (map[string]*model.DeviceSnapshot, []string) {
	var (
		mu        sync.Mutex
		snapshots = make(map[string]*model.DeviceSnapshot)
		skipped   []string
	)

	collectorSkips := gather(ctx, collectors, c.maxWorkers,
		func(col model.Collector) string { return "collector " + col.PN },
		func(ctx context.Context, col model.Collector) error {
			devices, err := c.api.GetCollectorDevices(ctx, col.PN)
			if err != nil {
				return err
			}
			// Devices behind one collector are fetched sequentially; the
			// gateway serializes bus access anyway.
			deviceSkips := gather(ctx, devices, 1,
				func(dev model.Device) string { return "device " + dev.SN },
				func(ctx context.Context, dev model.Device) error {
					points, err := c.api.GetDeviceLastData(ctx, col.PN, dev.Devcode, dev.Devaddr, dev.SN)
					if err != nil {
						return err
					}
					mu.Lock()
					snapshots[dev.SN] = &model.DeviceSnapshot{
						Collector: col,
						Device:    dev,
						Data:      points,
					}
					mu.Unlock()
					return nil
				})
			if len(deviceSkips) > 0 {
				mu.Lock()
				skipped = append(skipped, deviceSkips...)
				mu.Unlock()
			}
			return nil
		})

	skipped = append(skipped, collectorSkips...)
	return snapshots, skipped
}

// gather applies fn to every item with bounded concurrency, recording each
// failure as "id: err" instead of aborting the batch.
func gather[T any](ctx context.Context, items []T, workers int, id func(T) string, fn func(context.Context, T) error) []string {
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []string
	)
	for _, item := range items {
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if err := fn(ctx, item); err != nil {
				log.Printf("coordinator: %s: %v", id(item), err)
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", id(item), err))
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	return failures
}
