package devcode

func init() {
	register(2361, &Config{
		Name:            "DessMonitor Data Collector (devcode 2361)",
		Description:     "DessMonitor data collector/gateway",
		KnownInverters:  []string{"SRNE SR-EOV24-3.5K-5KWh"},
		OutputPriority:  map[string]string{},
		ChargerPriority: map[string]string{},
		OperatingMode: map[string]string{
			"Mains operation":     "Grid Mode",
			"Battery operation":   "Battery Mode",
			"Inverting operation": "Off-grid Mode",
			"Inverter Operation":  "Off-grid Mode",
			"PV operation":        "Solar Mode",
			"Standby":             "Standby",
			"Fault":               "Fault",
		},
		SensorTitles: map[string]string{
			"Battery level SOC":                    "State of Charge",
			"Current state of machine":             "Operating Mode",
			"BatTypeSet":                           "Battery Type",
			"InvCurr":                              "Inverter Current",
			"Load active power":                    "Load Power",
			"Apparent power of load":               "Load Apparent Power",
			"Load rate":                            "Load Percentage",
			"PV charging power":                    "Solar Charging Power",
			"PV charging current":                  "Solar Charging Current",
			"PV voltage":                           "PV Voltage",
			"PV radiator temperature":              "PV Radiator Temperature",
			"Temperature of inverter heat sink":    "Inverter Heat Sink Temperature",
			"Inverter radiator temperature":        "Inverter Radiator Temperature",
			"Charging power":                       "Grid Charging Power",
			"battery energy today charge":          "Battery Energy Today (Charge)",
			"battery energy today discharge":       "Battery Energy Today (Discharge)",
			"battery energy total charge":          "Battery Energy Total (Charge)",
			"battery energy total discharge":       "Battery Energy Total (Discharge)",
			"Accumulated power consumption of load": "Accumulated Load Energy",
			"Accumulated load from mains consumption":          "Accumulated Mains Load Energy",
			"Accumulated battery charging ampere hours":        "Accumulated Battery Charge Ah",
			"Accumulated discharge ampere hours of battery":    "Accumulated Battery Discharge Ah",
			"Ampere-hours of battery charging on the same day": "Daily Battery Charge Ah",
			"Ampere-hours of battery discharge on the same day": "Daily Battery Discharge Ah",
		},
	})
}
