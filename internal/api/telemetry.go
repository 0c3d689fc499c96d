package api

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// controlFieldKeywords selects the device settings worth surfacing in
// diagnostics; everything else the vendor exposes is noise.
var controlFieldKeywords = []string{
	"battery", "charge", "voltage", "current", "priority",
	"protection", "bulk", "floating", "cutoff", "type", "output",
}

// GetDeviceLastData fetches the latest raw data points for one device.
func (c *Client) GetDeviceLastData(ctx context.Context, pn string, devcode, devaddr int, sn string) ([]model.DataPoint, error) {
	payload, err := c.makeRequest(ctx, "queryDeviceLastData", []Param{
		{"pn", pn},
		{"devcode", strconv.Itoa(devcode)},
		{"devaddr", strconv.Itoa(devaddr)},
		{"sn", sn},
		{"i18n", "en"},
	})
	if err != nil {
		return nil, err
	}
	var points []model.DataPoint
	if len(payload.Dat) > 0 && string(payload.Dat) != "null" {
		if err := json.Unmarshal(payload.Dat, &points); err != nil {
			return nil, &TransportError{Action: "queryDeviceLastData", Err: err}
		}
	}
	return points, nil
}

// GetDeviceSummaryData fetches the plant-level device summary and
// synthesizes data points for the fields the per-device query never
// reports: output power and daily/total generation.
func (c *Client) GetDeviceSummaryData(ctx context.Context, pid int64) (map[string]SummaryEntry, error) {
	payload, err := c.makeRequest(ctx, "webQueryDeviceEs", []Param{
		{"pid", strconv.FormatInt(pid, 10)},
		{"pagesize", "50"},
	})
	if err != nil {
		return nil, err
	}

	var dat struct {
		Device []map[string]any `json:"device"`
	}
	if len(payload.Dat) > 0 {
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return nil, &TransportError{Action: "webQueryDeviceEs", Err: err}
		}
	}

	summary := make(map[string]SummaryEntry, len(dat.Device))
	for _, device := range dat.Device {
		sn, _ := device["sn"].(string)
		if sn == "" {
			continue
		}
		var points []model.DataPoint
		if v, ok := device["outpower"]; ok {
			points = append(points, model.DataPoint{Title: "outpower", Value: v, Unit: model.UnitPower})
		}
		if v, ok := device["energyToday"]; ok {
			points = append(points, model.DataPoint{Title: "energyToday", Value: v, Unit: model.UnitEnergy})
		}
		if v, ok := device["energyTotal"]; ok {
			points = append(points, model.DataPoint{Title: "energyTotal", Value: v, Unit: model.UnitEnergy})
		}

		alias, _ := device["devalias"].(string)
		if alias == "" {
			alias = "DessMonitor"
		}
		status := 0
		if s, ok := device["status"].(float64); ok {
			status = int(s)
		}
		summary[sn] = SummaryEntry{
			Data:   points,
			Device: SummaryDevice{Alias: alias, SN: sn, Status: status},
		}
	}
	return summary, nil
}

// GetDeviceControlFields fetches the writable settings of a device,
// filtered down to the fields diagnostics cares about.
func (c *Client) GetDeviceControlFields(ctx context.Context, pn string, devcode, devaddr int, sn string) (map[string]ControlField, error) {
	payload, err := c.makeRequest(ctx, "queryDeviceCtrlField", []Param{
		{"i18n", "en_US"},
		{"source", "1"},
		{"pn", pn},
		{"devcode", strconv.Itoa(devcode)},
		{"devaddr", strconv.Itoa(devaddr)},
		{"sn", sn},
	})
	if err != nil {
		return nil, err
	}

	var dat struct {
		Field []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Item []struct {
				Key string `json:"key"`
				Val string `json:"val"`
			} `json:"item"`
		} `json:"field"`
	}
	if len(payload.Dat) > 0 {
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return nil, &TransportError{Action: "queryDeviceCtrlField", Err: err}
		}
	}

	fields := make(map[string]ControlField)
	for _, f := range dat.Field {
		if f.Name == "" || !matchesControlKeyword(f.Name) {
			continue
		}
		cf := ControlField{ID: f.ID}
		for _, item := range f.Item {
			cf.Options = append(cf.Options, ControlOption{Key: item.Key, Val: item.Val})
		}
		fields[f.Name] = cf
	}
	return fields, nil
}

func matchesControlKeyword(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range controlFieldKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// GetDeviceParameters fetches the current parameter values of a device.
func (c *Client) GetDeviceParameters(ctx context.Context, pn string, devcode, devaddr int, sn string) (map[string]Parameter, error) {
	payload, err := c.makeRequest(ctx, "queryDeviceParsEs", []Param{
		{"i18n", "en_US"},
		{"source", "1"},
		{"pn", pn},
		{"devcode", strconv.Itoa(devcode)},
		{"devaddr", strconv.Itoa(devaddr)},
		{"sn", sn},
	})
	if err != nil {
		return nil, err
	}

	var dat struct {
		Parameter []struct {
			Name string `json:"name"`
			Val  any    `json:"val"`
			Unit string `json:"unit"`
			Par  string `json:"par"`
		} `json:"parameter"`
	}
	if len(payload.Dat) > 0 {
		if err := json.Unmarshal(payload.Dat, &dat); err != nil {
			return nil, &TransportError{Action: "queryDeviceParsEs", Err: err}
		}
	}

	params := make(map[string]Parameter, len(dat.Parameter))
	for _, p := range dat.Parameter {
		if p.Name == "" {
			continue
		}
		params[p.Name] = Parameter{Value: p.Val, Unit: p.Unit, ID: p.Par}
	}
	return params, nil
}
