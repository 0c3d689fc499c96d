package devcode

func init() {
	register(6515, &Config{
		Name:           "DessMonitor Data Collector (devcode 6515)",
		Description:    "DessMonitor data collector/gateway for single-phase inverters (WiFi)",
		KnownInverters: []string{"ANENJI ANJ-HHS-11KW-48V-WIFI"},
		OutputPriority: map[string]string{
			"SUB": "Solar → Utility → Battery",
			"SBU": "Solar → Battery → Utility",
			"SUF": "Solar → Utility First",
		},
		ChargerPriority: map[string]string{
			"SOF": "Solar First",
			"SNU": "Solar and Utility",
			"OSO": "Only Solar",
			"SOR": "Solar or Utility",
		},
		OperatingMode: map[string]string{
			"OffgridMode":   "Off-grid Mode",
			"Bypass Mode":   "Grid Mode",
			"Line Mode":     "Grid Mode",
			"Mains Mode":    "Grid Mode",
			"Battery Mode":  "Battery Mode",
			"Inverter Mode": "Off-grid Mode",
			"Standby":       "Standby",
			"Fault":         "Fault",
		},
		SensorTitles: map[string]string{
			// Fix typos
			"INV Module Termperature": "Inverter Temperature",
			"DC Module Termperature":  "DC Module Temperature",
			"Output Aparent Power":    "Output Apparent Power",
			"Devise serial number":    "Device Serial Number",
			// Standardize output sensors
			"Output frequency": "Output Frequency",
			// PV sensors
			"PV1 Current":               "PV1 Charger Current",
			"PV1 Power":                 "PV1 Charger Power",
			"PV2 Current":               "PV2 Charger Current",
			"PV2 Power":                 "PV2 Charger Power",
			"Total PV Power":            "PV Power",
			"Total PV Charging Power":   "PV Total Charger Power",
			"Total PV Charging Current": "PV Charging Current",
			"PV temperature":            "PV Temperature",
			// Energy sensors
			"Daily PV energy generation": "Energy Today",
			"Total PV energy generation": "Energy Total",
			// Priority sensors
			"Main Output Priority":      "Output priority",
			"Current output priority":   "Output priority",
			"Current charging priority": "Charger Source Priority",
		},
	})
}
