package coordinator

import (
	"context"
	"log"

	"github.com/andreas-glaser/ha-dessmonitor/internal/devcode"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// mergeSummaryData folds plant-summary points into the snapshots. The
// summary query is the only source of output power and daily/total
// generation for most models, but its failure never fails the cycle.
func (c *Coordinator) mergeSummaryData(ctx context.Context, snapshots map[string]*model.DeviceSnapshot) {
	pid, err := c.api.GetPrimaryProjectID(ctx)
	if err != nil {
		log.Printf("coordinator: summary skipped, primary project: %v", err)
		return
	}
	summary, err := c.api.GetDeviceSummaryData(ctx, pid)
	if err != nil {
		log.Printf("coordinator: summary skipped, project %d: %v", pid, err)
		return
	}

	for sn, snap := range snapshots {
		entry, ok := summary[sn]
		if !ok || len(entry.Data) == 0 {
			continue
		}
		mergeSummaryPoints(snap, entry.Data)
	}
}

// mergeSummaryPoints appends summary points the device does not already
// report. A point counts as already present when its title matches an
// existing title either raw or after the devcode title mapping; summary
// titles themselves are not back-mapped.
func mergeSummaryPoints(snap *model.DeviceSnapshot, points []model.DataPoint) {
	code := snap.Device.Devcode
	supported := devcode.IsSupported(code)

	existing := make(map[string]struct{}, 2*len(snap.Data))
	for _, p := range snap.Data {
		existing[p.Title] = struct{}{}
	}
	if supported {
		for _, p := range snap.Data {
			existing[devcode.MapSensorTitle(code, p.Title)] = struct{}{}
		}
	}

	for _, p := range points {
		if p.Title == "" {
			continue
		}
		if _, ok := existing[p.Title]; ok {
			continue
		}
		if supported {
			if _, ok := existing[devcode.MapSensorTitle(code, p.Title)]; ok {
				continue
			}
		}
		snap.Data = append(snap.Data, p)
		existing[p.Title] = struct{}{}
	}
}

// refreshControlDetails re-fetches control fields and parameters for every
// device in the snapshot map. Failures are cached alongside the data so
// diagnostics can report them.
func (c *Coordinator) refreshControlDetails(ctx context.Context, snapshots map[string]*model.DeviceSnapshot) {
	fresh := make(map[string]ControlDetails, len(snapshots))
	for sn, snap := range snapshots {
		pn := snap.Collector.PN
		dev := snap.Device
		details := ControlDetails{}

		fields, err := c.api.GetDeviceControlFields(ctx, pn, dev.Devcode, dev.Devaddr, sn)
		if err == nil {
			details.Fields = fields
			details.Params, err = c.api.GetDeviceParameters(ctx, pn, dev.Devcode, dev.Devaddr, sn)
		}
		if err != nil {
			log.Printf("coordinator: control details for %s: %v", sn, err)
			details.FetchError = err.Error()
		}
		fresh[sn] = details
	}

	c.mu.Lock()
	c.control = fresh
	c.mu.Unlock()
}

// Data returns the snapshots of the most recent successful cycle.
func (c *Coordinator) Data() map[string]*model.DeviceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// ControlDetails returns the cached control fields for one device SN.
func (c *Coordinator) ControlDetails(sn string) (ControlDetails, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	details, ok := c.control[sn]
	return details, ok
}

// LastStats reports the counters of the most recent cycle.
func (c *Coordinator) LastStats() CycleStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStats
}
