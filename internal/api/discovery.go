package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

const discoveryPageSize = 50

// GetCollectors discovers every collector reachable from the account's
// projects. Failures inside a single project are logged and skipped; only
// when every project fails does discovery fail as a whole. The returned
// projects are the deduped set that contributed at least one collector.
func (c *Client) GetCollectors(ctx context.Context) ([]model.Collector, []model.Project, error) {
	payload, err := c.makeRequest(ctx, "queryPlants", []Param{
		{"pagesize", strconv.Itoa(discoveryPageSize)},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("query projects: %w", err)
	}

	var dat struct {
		Plant []model.Project `json:"plant"`
	}
	if len(payload.Dat) > 0 {
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return nil, nil, &TransportError{Action: "queryPlants", Err: err}
		}
	}

	var (
		collectors  []model.Collector
		projects    []model.Project
		failures    []string
		seenProject = make(map[int64]bool)
	)
	for _, project := range dat.Plant {
		if project.ID == 0 {
			continue
		}
		found, err := c.collectorsForProject(ctx, project.ID)
		if err != nil {
			log.Printf("api: collectors for project %d: %v", project.ID, err)
			failures = append(failures, fmt.Sprintf("project %d: %v", project.ID, err))
			continue
		}
		collectors = append(collectors, found...)
		if len(found) > 0 && !seenProject[project.ID] {
			seenProject[project.ID] = true
			projects = append(projects, project)
		}
	}

	if len(dat.Plant) > 0 && len(failures) == len(dat.Plant) {
		return nil, nil, &AggregateError{Op: "collector discovery", Reasons: failures}
	}

	if len(collectors) == 0 {
		// One diagnostic probe so the account state shows up in logs.
		if _, err := c.makeRequest(ctx, "queryCollectorCountEs", nil); err != nil {
			log.Printf("api: collector count probe: %v", err)
		} else {
			log.Printf("api: account reports no collectors in any project")
		}
	}

	log.Printf("api: discovered %d collectors across %d projects", len(collectors), len(projects))
	return collectors, projects, nil
}

// collectorsForProject pages through webQueryCollectorsEs until a short
// page arrives or the running total reaches the server-reported total.
func (c *Client) collectorsForProject(ctx context.Context, pid int64) ([]model.Collector, error) {
	var out []model.Collector
	for page := 0; ; page++ {
		payload, err := c.makeRequest(ctx, "webQueryCollectorsEs", []Param{
			{"pid", strconv.FormatInt(pid, 10)},
			{"page", strconv.Itoa(page)},
			{"pagesize", strconv.Itoa(discoveryPageSize)},
		})
		if err != nil {
			return nil, err
		}

		var dat struct {
			Collector []rawCollector `json:"collector"`
			Total     int            `json:"total"`
		}
		if len(payload.Dat) == 0 {
			break
		}
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return nil, &TransportError{Action: "webQueryCollectorsEs", Err: err}
		}
		if len(dat.Collector) == 0 {
			break
		}
		for _, rc := range dat.Collector {
			out = append(out, model.Collector{
				PN:        rc.PN,
				Alias:     rc.Alias,
				Firmware:  rc.Firmware,
				ProjectID: pid,
			})
		}
		if len(out) >= dat.Total || len(dat.Collector) < discoveryPageSize {
			break
		}
	}
	return out, nil
}

// GetCollectorDevices lists the devices behind one collector.
func (c *Client) GetCollectorDevices(ctx context.Context, pn string) ([]model.Device, error) {
	payload, err := c.makeRequest(ctx, "queryCollectorDevices", []Param{{"pn", pn}})
	if err != nil {
		return nil, err
	}

	var dat struct {
		Dev []rawDevice `json:"dev"`
	}
	if len(payload.Dat) > 0 {
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return nil, &TransportError{Action: "queryCollectorDevices", Err: err}
		}
	}
	devices := make([]model.Device, 0, len(dat.Dev))
	for _, rd := range dat.Dev {
		devices = append(devices, model.Device{
			SN:      rd.SN,
			Devcode: int(rd.Devcode),
			Devaddr: int(rd.Devaddr),
			Alias:   rd.Alias,
		})
	}
	return devices, nil
}

// GetPrimaryProjectID returns the pid of the account's first project.
func (c *Client) GetPrimaryProjectID(ctx context.Context) (int64, error) {
	payload, err := c.makeRequest(ctx, "queryPlants", []Param{{"pagesize", "1"}})
	if err != nil {
		return 0, err
	}
	var dat struct {
		Plant []model.Project `json:"plant"`
	}
	if len(payload.Dat) > 0 {
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return 0, &TransportError{Action: "queryPlants", Err: err}
		}
	}
	if len(dat.Plant) == 0 {
		return 0, fmt.Errorf("account has no projects")
	}
	return dat.Plant[0].ID, nil
}
