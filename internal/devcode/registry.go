// Package devcode maps the per-collector-model vocabulary of the vendor
// API onto a canonical sensor schema. Each supported devcode registers its
// tables from its own file; the devcode identifies the data collector
// (gateway stick), not the inverter behind it.
package devcode

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// Config describes one collector model's vocabulary.
type Config struct {
	Name            string
	Description     string
	KnownInverters  []string
	OutputPriority  map[string]string
	ChargerPriority map[string]string
	OperatingMode   map[string]string
	SensorTitles    map[string]string
}

// baseOperatingModes is the canonical mode vocabulary shared by all models.
var baseOperatingModes = []string{"Off-Grid Mode", "Grid Mode", "Hybrid Mode"}

var registry = map[int]*Config{}

// register installs a model table. Called from init functions only; the
// registry is read-only after package initialization.
func register(code int, cfg *Config) {
	registry[code] = cfg
}

// Lookup returns the table for a devcode, if supported.
func Lookup(code int) (*Config, bool) {
	cfg, ok := registry[code]
	return cfg, ok
}

// IsSupported reports whether a devcode has a registered table.
func IsSupported(code int) bool {
	_, ok := registry[code]
	return ok
}

// SupportedDevcodes lists all registered devcodes, sorted.
func SupportedDevcodes() []int {
	codes := make([]int, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// ModelName returns the display name for a devcode.
func ModelName(code int) string {
	if cfg, ok := registry[code]; ok {
		return cfg.Name
	}
	return fmt.Sprintf("Unsupported Device (devcode %d)", code)
}

// MapSensorTitle translates an API sensor title to its canonical name.
// Unknown titles and unknown devcodes pass through unchanged.
func MapSensorTitle(code int, title string) string {
	cfg, ok := registry[code]
	if !ok {
		return title
	}
	if mapped, ok := cfg.SensorTitles[title]; ok {
		return mapped
	}
	return title
}

// MapOutputPriority translates an output-priority value, passing unknown
// values through unchanged.
func MapOutputPriority(code int, value string) string {
	cfg, ok := registry[code]
	if !ok {
		return value
	}
	if mapped, ok := cfg.OutputPriority[value]; ok {
		return mapped
	}
	return value
}

// MapChargerPriority translates a charger-priority value, passing unknown
// values through unchanged.
func MapChargerPriority(code int, value string) string {
	cfg, ok := registry[code]
	if !ok {
		return value
	}
	if mapped, ok := cfg.ChargerPriority[value]; ok {
		return mapped
	}
	return value
}

// MapOperatingMode translates an operating-mode value: exact match on the
// trimmed value first, then a case-insensitive pass, else the trimmed
// value unchanged.
func MapOperatingMode(code int, value string) string {
	cfg, ok := registry[code]
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(value)
	if mapped, ok := cfg.OperatingMode[trimmed]; ok {
		return mapped
	}
	lower := strings.ToLower(trimmed)
	for candidate, mapped := range cfg.OperatingMode {
		if strings.ToLower(strings.TrimSpace(candidate)) == lower {
			return mapped
		}
	}
	return trimmed
}

// ApplyTransformations returns a transformed copy of a data point: the
// title map first, then a value map picked by what the mapped title says
// the point is. Non-string values and unsupported devcodes pass through.
func ApplyTransformations(code int, point model.DataPoint) model.DataPoint {
	if !IsSupported(code) {
		log.Printf("devcode: unsupported devcode %d, no transformations applied", code)
		return point
	}

	out := point
	out.Title = MapSensorTitle(code, point.Title)

	value, ok := out.Value.(string)
	if !ok || out.Title == "" {
		return out
	}

	lower := strings.ToLower(out.Title)
	switch {
	case strings.Contains(lower, "priority") && strings.Contains(lower, "output"):
		out.Value = MapOutputPriority(code, value)
	case strings.Contains(lower, "priority") && strings.Contains(lower, "charg"):
		out.Value = MapChargerPriority(code, value)
	case strings.Contains(lower, "operating mode") || strings.HasSuffix(lower, " mode"):
		out.Value = MapOperatingMode(code, value)
	}
	return out
}

// AllOperatingModes returns every mode value that can appear after
// normalization: the base vocabulary plus each table's raw and mapped
// values, sorted.
func AllOperatingModes() []string {
	seen := make(map[string]bool)
	for _, mode := range baseOperatingModes {
		seen[mode] = true
	}
	for _, cfg := range registry {
		for raw, mapped := range cfg.OperatingMode {
			seen[raw] = true
			seen[mapped] = true
		}
	}
	modes := make([]string, 0, len(seen))
	for mode := range seen {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}
