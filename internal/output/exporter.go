package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/andreas-glaser/ha-dessmonitor/internal/devcode"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// WriteJSON writes the snapshot map to a JSON file with pretty formatting.
func WriteJSON(path string, snaps map[string]*model.DeviceSnapshot) error {
	b, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteCSV flattens the snapshot map and writes normalized points to a CSV
// file, one row per data point, ordered by device SN.
// Columns: sn,device_alias,collector_pn,devcode,title,value,unit
func WriteCSV(path string, snaps map[string]*model.DeviceSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"sn", "device_alias", "collector_pn", "devcode", "title", "value", "unit"}
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	sns := make([]string, 0, len(snaps))
	for sn := range snaps {
		sns = append(sns, sn)
	}
	sort.Strings(sns)

	for _, sn := range sns {
		snap := snaps[sn]
		for _, p := range snap.Data {
			if devcode.IsSupported(snap.Device.Devcode) {
				p = devcode.ApplyTransformations(snap.Device.Devcode, p)
			}
			rec := []string{
				sn,
				snap.Device.Alias,
				snap.Collector.PN,
				fmt.Sprintf("%d", snap.Device.Devcode),
				p.Title,
				fmt.Sprintf("%v", p.Value),
				p.Unit,
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
	}
	w.Flush()
	return w.Error()
}
