package diagnostics

import (
	"testing"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

func snapshot(points ...model.DataPoint) *model.DeviceSnapshot {
	return &model.DeviceSnapshot{
		Collector: model.Collector{PN: "PN1"},
		Device:    model.Device{SN: "S1", Alias: "Garage", Devcode: 2449},
		Data:      points,
	}
}

func TestCategorizeBuckets(t *testing.T) {
	t.Parallel()
	report := BuildReport(snapshot(
		model.DataPoint{Title: "Output priority", Value: "SBU"},
		model.DataPoint{Title: "Battery Type", Value: "Lithium"},
		model.DataPoint{Title: "Operating Mode", Value: "Grid Mode"},
		model.DataPoint{Title: "Grid Status", Value: "Connected"},
		model.DataPoint{Title: "Battery Voltage", Value: "52.1", Unit: "V"},
	), nil, nil, "")

	if _, ok := report.Configuration["Output priority"]; !ok {
		t.Fatalf("Output priority belongs in configuration: %+v", report.Configuration)
	}
	if _, ok := report.Configuration["Battery Type"]; !ok {
		t.Fatalf("Battery Type matches the type keyword: %+v", report.Configuration)
	}
	if _, ok := report.Status["Operating Mode"]; !ok {
		t.Fatalf("Operating Mode belongs in status: %+v", report.Status)
	}
	if _, ok := report.Status["Grid Status"]; !ok {
		t.Fatalf("Grid Status belongs in status: %+v", report.Status)
	}
	if _, ok := report.Configuration["Battery Voltage"]; ok {
		t.Fatalf("plain measurements match no bucket")
	}
	if _, ok := report.Status["Battery Voltage"]; ok {
		t.Fatalf("plain measurements match no bucket")
	}
	if report.RawDataPoints != 5 {
		t.Fatalf("raw_data_points = %d, want 5", report.RawDataPoints)
	}
}

func TestOptionFieldPriorityResolution(t *testing.T) {
	t.Parallel()
	fields := map[string]api.ControlField{
		"Output priority": {
			ID: "se_output_priority",
			Options: []api.ControlOption{
				{Key: "0", Val: "Utility first"},
				{Key: "1", Val: "Solar first"},
				{Key: "2", Val: "SBU first"},
			},
		},
	}
	// Sensor reports the option text; it must resolve via the key table
	// (SBU -> key 2) to the option display value.
	report := BuildReport(snapshot(
		model.DataPoint{Title: "Output priority", Value: "sbu"},
	), fields, nil, "")

	entry, ok := report.ControlFields["Output priority"]
	if !ok {
		t.Fatalf("missing control field entry")
	}
	if entry.Value != "SBU first" {
		t.Fatalf("value = %v, want SBU first", entry.Value)
	}
	if len(entry.Options) != 3 || entry.Options[2] != "2: SBU first" {
		t.Fatalf("unexpected options: %v", entry.Options)
	}
	if entry.ID != "se_output_priority" {
		t.Fatalf("id = %q", entry.ID)
	}
}

func TestOptionFieldOutputVoltageCustomFallback(t *testing.T) {
	t.Parallel()
	fields := map[string]api.ControlField{
		"Output Voltage": {
			ID: "ov",
			Options: []api.ControlOption{
				{Key: "220.0", Val: "220V"},
				{Key: "230.0", Val: "230V"},
			},
		},
	}

	// Measured voltage matches an option key: "230" keys as "230.0".
	report := BuildReport(snapshot(
		model.DataPoint{Title: "Output Voltage", Value: "230"},
	), fields, nil, "")
	if got := report.ControlFields["Output Voltage"].Value; got != "230V" {
		t.Fatalf("value = %v, want 230V", got)
	}

	// Off-grid voltage with no matching option.
	report = BuildReport(&model.DeviceSnapshot{
		Device: model.Device{SN: "S1", Devcode: 2449},
		Data:   []model.DataPoint{{Title: "Output Voltage", Value: "231.5"}},
	}, fields, nil, "")
	if got := report.ControlFields["Output Voltage"].Value; got != "231.5 V (Custom)" {
		t.Fatalf("value = %v, want 231.5 V (Custom)", got)
	}

	// No sensor value at all resolves to Not Set.
	report = BuildReport(&model.DeviceSnapshot{
		Device: model.Device{SN: "S1", Devcode: 2449},
	}, fields, nil, "")
	if got := report.ControlFields["Output Voltage"].Value; got != notSet {
		t.Fatalf("value = %v, want %q", got, notSet)
	}
}

func TestVoltageOptionKeyFormat(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"230":   "230.0",
		"230.0": "230.0",
		"231.5": "231.5",
		"abc":   "abc",
	}
	for in, want := range cases {
		if got := voltageOptionKey(in); got != want {
			t.Fatalf("voltageOptionKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValueFieldVoltageEstimates(t *testing.T) {
	t.Parallel()
	fields := map[string]api.ControlField{
		"Bulk Charging Voltage":      {ID: "bulk"},
		"High DC Protection Voltage": {ID: "hdc"},
		"Max Charging Current":       {ID: "mcc"},
	}
	report := BuildReport(snapshot(), fields, nil, "")

	if got := report.ControlFields["Bulk Charging Voltage"]; got.Value != "57.6 V (Est.)" || got.Unit != model.UnitVoltage {
		t.Fatalf("bulk = %+v", got)
	}
	if got := report.ControlFields["High DC Protection Voltage"]; got.Value != "58.4 V (Est.)" {
		t.Fatalf("high dc = %+v", got)
	}
	if got := report.ControlFields["Max Charging Current"]; got.Value != notSet || got.Unit != model.UnitCurrent {
		t.Fatalf("current field = %+v", got)
	}
}

func TestControlErrorEmbedded(t *testing.T) {
	t.Parallel()
	report := BuildReport(snapshot(), nil, nil, "queryDeviceCtrlField: HTTP 502")
	if report.ControlError != "queryDeviceCtrlField: HTTP 502" {
		t.Fatalf("control error = %q", report.ControlError)
	}
	if len(report.ControlFields) != 0 {
		t.Fatalf("no fields expected on fetch failure")
	}
}

func TestDeviceHeader(t *testing.T) {
	t.Parallel()
	report := BuildReport(snapshot(), nil, nil, "")
	if !report.Device.Supported {
		t.Fatalf("devcode 2449 is supported")
	}
	if report.Device.Model != "DessMonitor Data Collector (devcode 2449)" {
		t.Fatalf("model = %q", report.Device.Model)
	}
	if report.Device.CollectorPN != "PN1" {
		t.Fatalf("collector pn = %q", report.Device.CollectorPN)
	}
}
