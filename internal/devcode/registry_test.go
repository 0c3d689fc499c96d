package devcode

import (
	"reflect"
	"sort"
	"testing"

	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

func TestLookupKnownDevcodes(t *testing.T) {
	t.Parallel()
	want := []int{2334, 2361, 2376, 2449, 2451, 6422, 6515, 6544}
	if got := SupportedDevcodes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("SupportedDevcodes() = %v, want %v", got, want)
	}
	for _, code := range want {
		if !IsSupported(code) {
			t.Fatalf("devcode %d should be supported", code)
		}
	}
	if IsSupported(9999) {
		t.Fatalf("devcode 9999 should not be supported")
	}
}

func TestModelName(t *testing.T) {
	t.Parallel()
	if got := ModelName(2376); got != "DessMonitor Data Collector (devcode 2376)" {
		t.Fatalf("ModelName(2376) = %q", got)
	}
	if got := ModelName(1234); got != "Unsupported Device (devcode 1234)" {
		t.Fatalf("ModelName(1234) = %q", got)
	}
}

// Title maps must be stable under repeated application: a canonical title
// must never itself be a raw key mapping somewhere else.
func TestMapSensorTitleIdempotent(t *testing.T) {
	t.Parallel()
	for _, code := range SupportedDevcodes() {
		cfg, _ := Lookup(code)
		for raw := range cfg.SensorTitles {
			once := MapSensorTitle(code, raw)
			twice := MapSensorTitle(code, once)
			if once != twice {
				t.Fatalf("devcode %d: %q maps to %q then %q", code, raw, once, twice)
			}
		}
	}
}

func TestMapSensorTitlePassthrough(t *testing.T) {
	t.Parallel()
	if got := MapSensorTitle(2376, "No Such Sensor"); got != "No Such Sensor" {
		t.Fatalf("unknown title should pass through, got %q", got)
	}
	if got := MapSensorTitle(9999, "Battery percentage"); got != "Battery percentage" {
		t.Fatalf("unknown devcode should pass through, got %q", got)
	}
}

func TestMapOperatingMode2361(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"Inverter Operation", "Off-grid Mode"},
		{"inverter operation", "Off-grid Mode"}, // case-insensitive fallback
		{"  Mains operation  ", "Grid Mode"},    // trimmed exact match
		{"Weird Unknown Mode", "Weird Unknown Mode"},
		{"  Weird Unknown Mode  ", "Weird Unknown Mode"}, // passthrough is trimmed
	}
	for _, tc := range cases {
		if got := MapOperatingMode(2361, tc.in); got != tc.want {
			t.Fatalf("MapOperatingMode(2361, %q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMapPriorities2376(t *testing.T) {
	t.Parallel()
	if got := MapOutputPriority(2376, "SBU"); got != "Solar → Battery → Utility" {
		t.Fatalf("MapOutputPriority = %q", got)
	}
	if got := MapOutputPriority(2376, "???"); got != "???" {
		t.Fatalf("unknown priority should pass through, got %q", got)
	}
	if got := MapChargerPriority(2376, "PV First"); got != "Solar charging priority" {
		t.Fatalf("MapChargerPriority = %q", got)
	}
}

func TestApplyTransformationsTitleOnly(t *testing.T) {
	t.Parallel()
	in := model.DataPoint{Title: "Battery level SOC", Value: 77, Unit: "%"}
	out := ApplyTransformations(2361, in)
	if out.Title != "State of Charge" {
		t.Fatalf("title = %q, want State of Charge", out.Title)
	}
	if out.Value != 77 {
		t.Fatalf("non-enum value must pass through unchanged, got %v", out.Value)
	}
	if in.Title != "Battery level SOC" {
		t.Fatalf("input point was mutated")
	}
}

func TestApplyTransformationsModeValue(t *testing.T) {
	t.Parallel()
	in := model.DataPoint{Title: "Current state of machine", Value: "Inverting operation"}
	out := ApplyTransformations(2361, in)
	if out.Title != "Operating Mode" {
		t.Fatalf("title = %q", out.Title)
	}
	if out.Value != "Off-grid Mode" {
		t.Fatalf("value = %v, want Off-grid Mode", out.Value)
	}
}

func TestApplyTransformationsPriorityValue(t *testing.T) {
	t.Parallel()
	in := model.DataPoint{Title: "Output Source Priority", Value: "Solar Bat Utility"}
	out := ApplyTransformations(2449, in)
	if out.Title != "Output priority" {
		t.Fatalf("title = %q", out.Title)
	}
	if out.Value != "Solar → Battery → Utility" {
		t.Fatalf("value = %v", out.Value)
	}
}

func TestApplyTransformationsUnsupportedDevcode(t *testing.T) {
	t.Parallel()
	in := model.DataPoint{Title: "Current state of machine", Value: "Inverting operation"}
	out := ApplyTransformations(9999, in)
	if out != in {
		t.Fatalf("unsupported devcode must not transform, got %+v", out)
	}
}

func TestApplyTransformationsNonStringMode(t *testing.T) {
	t.Parallel()
	in := model.DataPoint{Title: "work state", Value: 3}
	out := ApplyTransformations(6422, in)
	if out.Title != "Operating mode" {
		t.Fatalf("title = %q", out.Title)
	}
	if out.Value != 3 {
		t.Fatalf("numeric mode value must pass through, got %v", out.Value)
	}
}

func TestAllOperatingModes(t *testing.T) {
	t.Parallel()
	modes := AllOperatingModes()
	if !sort.StringsAreSorted(modes) {
		t.Fatalf("modes are not sorted")
	}
	seen := make(map[string]bool, len(modes))
	for _, m := range modes {
		if seen[m] {
			t.Fatalf("duplicate mode %q", m)
		}
		seen[m] = true
	}
	// Base vocabulary, a raw key, and a mapped value must all be present.
	for _, want := range []string{"Hybrid Mode", "Inverting operation", "Off-grid Mode", "Grid Mode"} {
		if !seen[want] {
			t.Fatalf("modes missing %q", want)
		}
	}
}
