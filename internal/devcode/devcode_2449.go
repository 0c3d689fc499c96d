package devcode

func init() {
	register(2449, &Config{
		Name:           "DessMonitor Data Collector (devcode 2449)",
		Description:    "DessMonitor data collector/gateway",
		KnownInverters: []string{"EASUN 8KWA", "EASUN 11KWA", "WKS Evo MAX II 10kVA 48V"},
		OutputPriority: map[string]string{
			"Utility Solar Bat": "Utility → Solar → Battery",
			"Solar Utility Bat": "Solar → Utility → Battery",
			"Solar Bat Utility": "Solar → Battery → Utility",
		},
		ChargerPriority: map[string]string{
			"Solar First":                   "PV First",
			"Solar + Utility":               "PV Is At The Same Level As Utility",
			"Only Solar Charging Permitted": "Only PV",
		},
		OperatingMode: map[string]string{
			"Mains operation":     "Grid Mode",
			"Line Mode":           "Grid Mode",
			"Battery operation":   "Battery Mode",
			"Inverting operation": "Off-grid Mode",
			"Inverter Operation":  "Off-grid Mode",
			"Inverter operation":  "Off-grid Mode",
			"PV operation":        "Solar Mode",
			"Standby":             "Standby",
			"Inverter Fault":      "Fault",
		},
		SensorTitles: map[string]string{
			"AC Output Active Power":   "Output Active Power",
			"AC Output Apparent Power": "Output Apparent Power",
			"AC Output Frequency":      "Output Frequency",
			"AC Output Voltage":        "Output Voltage",
			"Battery Capacity":         "State of Charge",
			"Output Load Percent":      "Load Percent",
			"Output Source Priority":   "Output priority",
			"PV1 Charging Power":       "PV1 Charger Power",
			"PV1 Input Current":        "PV1 Charger Current",
			"PV1 Input Voltage":        "PV1 Voltage",
			"PV2 Charging power":       "PV2 Charger Power",
			"PV2 Input current":        "PV2 Charger Current",
			"PV2 Input voltage":        "PV2 Voltage",
			"Solar Feed To Grid Power": "Grid Power",
			"Today generation":         "Energy Today",
			"Total generation":         "Energy Total",
		},
	})
}
