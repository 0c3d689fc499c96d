package devcode

func init() {
	register(2376, &Config{
		Name:           "DessMonitor Data Collector (devcode 2376)",
		Description:    "DessMonitor data collector/gateway",
		KnownInverters: []string{"POW-HVM6.2K-48V-LIP"},
		OutputPriority: map[string]string{
			"SBU": "Solar → Battery → Utility",
			"SUB": "Solar → Utility → Battery",
			"UTI": "Utility First",
			"SOL": "Solar First",
		},
		ChargerPriority: map[string]string{
			"Utility First": "Grid charging priority",
			"PV First":      "Solar charging priority",
			"PV Is At The Same Level As Utility": "Solar and grid equal",
			"Only PV":                        "Solar only charging",
			"Only PV charging is allowed":    "Solar only charging",
		},
		OperatingMode: map[string]string{
			"Power On":      "Starting up",
			"Standby":       "Standby mode",
			"Line":          "Grid Mode",
			"Mains":         "Grid Mode",
			"Mains Mode":    "Grid Mode",
			"Battery":       "Battery mode",
			"Fault":         "Fault condition",
			"Off-Grid Mode": "Off-grid operation",
			"Grid Mode":     "Grid-tied operation",
			"Hybrid Mode":   "Hybrid operation",
		},
		SensorTitles: map[string]string{
			// Fix common API typos/inconsistencies
			"INV Module Termperature": "Inverter Temperature",
			"DC Module Termperature":  "DC Module Temperature",
			"Output frequency":        "Output Frequency",
			// Standardize energy sensor names
			"energyToday": "Daily Energy",
			"energyTotal": "Total Energy",
			"outpower":    "PV Power",
			"PV Charge Power":    "Solar Charging Power",
			"AC charging power":  "Grid Charging Power",
			"Battery Power":      "Battery Power",
			"Battery percentage": "State of Charge",
		},
	})
}
