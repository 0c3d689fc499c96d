// Package diagnostics formats a device snapshot plus its control fields
// into a human-readable report of configuration and status.
package diagnostics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
	"github.com/andreas-glaser/ha-dessmonitor/internal/devcode"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// notSet marks fields the device reports no value for.
const notSet = "Not Set"

var configKeywords = []string{
	"setting", "priority", "voltage setting", "cutoff",
	"capacity", "type", "configuration",
}

var statusKeywords = []string{
	"status", "operating mode", "state", "online", "connectivity",
}

// configOverrides are classified as configuration regardless of keywords.
var configOverrides = map[string]bool{
	"output priority":         true,
	"charger source priority": true,
}

// priorityOptionKeys maps the human-readable priority shown by the sensors
// back to the numeric option key the control API uses.
var priorityOptionKeys = map[string]map[string]int{
	"Output priority": {"SBU": 2, "UTI": 0, "SOL": 1, "SUB": 3},
	"Charger Source Priority": {
		"PV FIRST": 1, "UTILITY FIRST": 0, "PV_UTILITY": 2, "PV ONLY": 3,
	},
}

// voltageFallbacks are typical 48V-system setpoints shown when the device
// does not report the actual setting.
var voltageFallbacks = map[string]string{
	"High DC":  "58.4 V (Est.)",
	"Low DC":   "44.0 V (Est.)",
	"Bulk":     "57.6 V (Est.)",
	"Floating": "56.4 V (Est.)",
}

var voltageFieldNames = map[string]bool{
	"High DC Protection Voltage":                 true,
	"Bulk Charging Voltage":                      true,
	"Floating Charging Voltage":                  true,
	"Low DC Protection Voltage In Mains Mode":    true,
	"Low DC Protection Voltage In Off-Grid Mode": true,
}

// Entry is one formatted report line.
type Entry struct {
	Value   any      `json:"value"`
	Unit    string   `json:"unit"`
	Options []string `json:"options,omitempty"`
	ID      string   `json:"id,omitempty"`
}

// Report is the full diagnostics document for one device.
type Report struct {
	Device        DeviceInfo               `json:"device"`
	Configuration map[string]Entry         `json:"configuration"`
	Status        map[string]Entry         `json:"status"`
	ControlFields map[string]Entry         `json:"control_fields"`
	Parameters    map[string]api.Parameter `json:"parameters"`
	ControlError  string                   `json:"control_fetch_error,omitempty"`
	RawDataPoints int                      `json:"raw_data_points"`
}

// DeviceInfo is the report header.
type DeviceInfo struct {
	SN          string `json:"sn"`
	Alias       string `json:"alias"`
	Devcode     int    `json:"devcode"`
	Model       string `json:"model"`
	Supported   bool   `json:"supported"`
	CollectorPN string `json:"collector_pn"`
}

// BuildReport assembles the diagnostics document. fetchErr is the failure
// from the last control-detail refresh, if any; it is embedded, never fatal.
func BuildReport(snap *model.DeviceSnapshot, fields map[string]api.ControlField, params map[string]api.Parameter, fetchErr string) *Report {
	configuration, status := categorize(snap.Data)
	return &Report{
		Device: DeviceInfo{
			SN:          snap.Device.SN,
			Alias:       snap.Device.Alias,
			Devcode:     snap.Device.Devcode,
			Model:       devcode.ModelName(snap.Device.Devcode),
			Supported:   devcode.IsSupported(snap.Device.Devcode),
			CollectorPN: snap.Collector.PN,
		},
		Configuration: configuration,
		Status:        status,
		ControlFields: formatControlFields(fields, snap.Data),
		Parameters:    params,
		ControlError:  fetchErr,
		RawDataPoints: len(snap.Data),
	}
}

// categorize splits raw data points into configuration and status buckets
// by keyword; points matching neither are omitted from both.
func categorize(points []model.DataPoint) (map[string]Entry, map[string]Entry) {
	configuration := make(map[string]Entry)
	status := make(map[string]Entry)

	for _, p := range points {
		lower := strings.ToLower(p.Title)
		switch {
		case configOverrides[lower] || matchesAny(lower, configKeywords):
			configuration[p.Title] = Entry{Value: p.Value, Unit: p.Unit}
		case matchesAny(lower, statusKeywords):
			status[p.Title] = Entry{Value: p.Value, Unit: p.Unit}
		}
	}
	return configuration, status
}

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func formatControlFields(fields map[string]api.ControlField, points []model.DataPoint) map[string]Entry {
	formatted := make(map[string]Entry, len(fields))
	for name, field := range fields {
		if field.HasOptions() {
			formatted[name] = formatOptionField(name, field, points)
		} else {
			formatted[name] = formatValueField(name, field, points)
		}
	}
	return formatted
}

func formatOptionField(name string, field api.ControlField, points []model.DataPoint) Entry {
	options := make([]string, 0, len(field.Options))
	for _, opt := range field.Options {
		options = append(options, fmt.Sprintf("%s: %s", opt.Key, opt.Val))
	}
	return Entry{
		Value:   resolveOptionValue(name, field, points),
		Unit:    "",
		Options: options,
		ID:      field.ID,
	}
}

func formatValueField(name string, field api.ControlField, points []model.DataPoint) Entry {
	value := sensorValue(points, name)
	if value == nil {
		value = notSet
	}
	if voltageFieldNames[name] && value == notSet {
		value = estimateVoltage(name)
	}

	unit := ""
	if strings.Contains(name, "Voltage") {
		unit = model.UnitVoltage
	} else if strings.Contains(name, "Current") {
		unit = model.UnitCurrent
	}
	return Entry{Value: value, Unit: unit, ID: field.ID}
}

// resolveOptionValue works out what an enumerated field is currently set
// to. Priority fields map the sensor text to its option key; the Output
// Voltage field matches the measured voltage against the numeric option
// keys with a "(Custom)" fallback.
func resolveOptionValue(name string, field api.ControlField, points []model.DataPoint) any {
	value := sensorValue(points, name)

	if value != nil && len(priorityOptionKeys[name]) > 0 {
		if key, ok := matchPriorityOption(name, fmt.Sprintf("%v", value)); ok {
			return lookupOptionValue(field, key, "")
		}
	}
	if name == "Output Voltage" && value != nil {
		return lookupOptionValue(field, voltageOptionKey(value),
			fmt.Sprintf("%v V (Custom)", value))
	}
	if value != nil {
		return value
	}
	return notSet
}

// voltageOptionKey renders a measured voltage the way the vendor keys its
// options: integral values carry one decimal ("230.0").
func voltageOptionKey(value any) string {
	s := fmt.Sprintf("%v", value)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	key := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(key, ".") {
		key += ".0"
	}
	return key
}

func matchPriorityOption(name, sensorText string) (string, bool) {
	upper := strings.ToUpper(sensorText)
	for text, key := range priorityOptionKeys[name] {
		if upper == strings.ToUpper(text) {
			return strconv.Itoa(key), true
		}
	}
	return "", false
}

func lookupOptionValue(field api.ControlField, key, fallback string) string {
	for _, opt := range field.Options {
		if opt.Key == key {
			if opt.Val != "" {
				return opt.Val
			}
			return key
		}
	}
	if fallback != "" {
		return fallback
	}
	return key
}

func sensorValue(points []model.DataPoint, title string) any {
	for _, p := range points {
		if p.Title == title {
			return p.Value
		}
	}
	return nil
}

func estimateVoltage(name string) string {
	for key, value := range voltageFallbacks {
		if strings.Contains(name, key) {
			return value
		}
	}
	return notSet
}
