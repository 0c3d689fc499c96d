package model

// Units reported or synthesized alongside data points.
const (
	UnitPower   = "kW"
	UnitEnergy  = "kWh"
	UnitVoltage = "V"
	UnitCurrent = "A"
)

// DataPoint is one named telemetry reading as the vendor API returns it.
// Values arrive as strings or numbers depending on the collector firmware,
// so Value stays untyped.
type DataPoint struct {
	Title string `json:"title"`
	Value any    `json:"val"`
	Unit  string `json:"unit"`
}

// Collector is a data gateway registered under an account, identified by
// its PN (the serial of the logger stick).
type Collector struct {
	PN        string `json:"pn"`
	Alias     string `json:"alias"`
	Firmware  string `json:"fireware"` // vendor field name, typo theirs
	ProjectID int64  `json:"pid"`
}

// Device is an inverter behind a collector. Devcode selects the
// normalization table; devaddr is the bus address behind the collector.
type Device struct {
	SN      string `json:"sn"`
	Devcode int    `json:"devcode"`
	Devaddr int    `json:"devaddr"`
	Alias   string `json:"alias"`
}

// Project is a plant/site grouping collectors, as reported by discovery.
type Project struct {
	ID   int64  `json:"pid"`
	Name string `json:"name"`
}

// DeviceSnapshot is the per-device result of one refresh cycle: the device,
// the collector it hangs off, and the latest data points (summary points
// merged in, normalization applied downstream).
type DeviceSnapshot struct {
	Collector Collector   `json:"collector"`
	Device    Device      `json:"device"`
	Data      []DataPoint `json:"data"`
}
