package devcode

func init() {
	register(6422, &Config{
		Name:            "DessMonitor Data Collector (devcode 6422)",
		Description:     "DessMonitor data collector/gateway",
		KnownInverters:  []string{"Must PH19-6048 EXP"},
		OutputPriority:  map[string]string{},
		ChargerPriority: map[string]string{},
		OperatingMode: map[string]string{
			"Grid-Tie": "Grid Mode",
			"OffGrid":  "Off-Grid Mode",
		},
		SensorTitles: map[string]string{
			"work state":         "Operating mode",
			"Grid frequency":     "Grid Frequency",
			"Inverter frequency": "Output frequency",
			"Batt Current":       "Battery Current",
			"batt power":         "Battery Power",
		},
	})
}
