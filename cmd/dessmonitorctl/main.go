// dessmonitorctl is a debugging companion for the poller: it signs in with
// the same credentials and lets you inspect what the cloud API reports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
	"github.com/andreas-glaser/ha-dessmonitor/internal/coordinator"
	"github.com/andreas-glaser/ha-dessmonitor/internal/devcode"
	"github.com/andreas-glaser/ha-dessmonitor/internal/diagnostics"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
	"github.com/andreas-glaser/ha-dessmonitor/internal/output"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: dessmonitorctl <command> [flags]

commands:
  auth        verify the credentials sign in
  collectors  list collectors and their projects
  devices     list devices behind a collector (-pn)
  data        show latest data for a device (-sn, -raw for unmapped)
  analyze     report devcode mapping coverage for a device (-sn)
  export      run one full refresh and write it out (-json/-csv)

credentials come from DESSMONITOR_USERNAME / DESSMONITOR_PASSWORD /
DESSMONITOR_COMPANY_KEY (a .env file is honored).
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; cancel() }()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "auth":
		err = runAuth(ctx, args)
	case "collectors":
		err = runCollectors(ctx, args)
	case "devices":
		err = runDevices(ctx, args)
	case "data":
		err = runData(ctx, args)
	case "analyze":
		err = runAnalyze(ctx, args)
	case "export":
		err = runExport(ctx, args)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func newClient(fs *flag.FlagSet, args []string) (*api.Client, error) {
	baseURL := fs.String("base-url", "", "API base URL override")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	username := os.Getenv("DESSMONITOR_USERNAME")
	password := os.Getenv("DESSMONITOR_PASSWORD")
	if username == "" || password == "" {
		return nil, fmt.Errorf("DESSMONITOR_USERNAME and DESSMONITOR_PASSWORD must be set")
	}
	client := api.NewClient(api.Config{
		Username:   username,
		Password:   password,
		CompanyKey: os.Getenv("DESSMONITOR_COMPANY_KEY"),
		BaseURL:    *baseURL,
	})
	return client, nil
}

func runAuth(ctx context.Context, args []string) error {
	client, err := newClient(flag.NewFlagSet("auth", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}
	fmt.Println("authentication OK")
	return nil
}

func runCollectors(ctx context.Context, args []string) error {
	client, err := newClient(flag.NewFlagSet("collectors", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}
	collectors, projects, err := client.GetCollectors(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		fmt.Printf("project %d: %s\n", p.ID, p.Name)
	}
	for _, c := range collectors {
		fmt.Printf("  %s  alias=%q firmware=%s project=%d\n", c.PN, c.Alias, c.Firmware, c.ProjectID)
	}
	fmt.Printf("%d collectors\n", len(collectors))
	return nil
}

func runDevices(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	pn := fs.String("pn", "", "collector PN")
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *pn == "" {
		return fmt.Errorf("-pn is required")
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}
	devices, err := client.GetCollectorDevices(ctx, *pn)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%s  devcode=%d (%s) devaddr=%d alias=%q\n",
			d.SN, d.Devcode, devcode.ModelName(d.Devcode), d.Devaddr, d.Alias)
	}
	return nil
}

// findDevice walks collectors until it finds the device with the given SN.
func findDevice(ctx context.Context, client *api.Client, sn string) (model.Collector, model.Device, error) {
	collectors, _, err := client.GetCollectors(ctx)
	if err != nil {
		return model.Collector{}, model.Device{}, err
	}
	for _, col := range collectors {
		devices, err := client.GetCollectorDevices(ctx, col.PN)
		if err != nil {
			log.Printf("collector %s: %v", col.PN, err)
			continue
		}
		for _, dev := range devices {
			if dev.SN == sn {
				return col, dev, nil
			}
		}
	}
	return model.Collector{}, model.Device{}, fmt.Errorf("device %s not found under any collector", sn)
}

func runData(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("data", flag.ExitOnError)
	sn := fs.String("sn", "", "device SN")
	raw := fs.Bool("raw", false, "show unmapped titles and values")
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *sn == "" {
		return fmt.Errorf("-sn is required")
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}
	col, dev, err := findDevice(ctx, client, *sn)
	if err != nil {
		return err
	}
	points, err := client.GetDeviceLastData(ctx, col.PN, dev.Devcode, dev.Devaddr, dev.SN)
	if err != nil {
		return err
	}
	for _, p := range points {
		if !*raw && devcode.IsSupported(dev.Devcode) {
			p = devcode.ApplyTransformations(dev.Devcode, p)
		}
		fmt.Printf("%-45s %v %s\n", p.Title, p.Value, p.Unit)
	}
	return nil
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	sn := fs.String("sn", "", "device SN")
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *sn == "" {
		return fmt.Errorf("-sn is required")
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}
	col, dev, err := findDevice(ctx, client, *sn)
	if err != nil {
		return err
	}

	fmt.Printf("device %s  devcode=%d  %s\n", dev.SN, dev.Devcode, devcode.ModelName(dev.Devcode))
	if !devcode.IsSupported(dev.Devcode) {
		fmt.Println("devcode is not supported; all titles and values pass through unmapped")
	}

	points, err := client.GetDeviceLastData(ctx, col.PN, dev.Devcode, dev.Devaddr, dev.SN)
	if err != nil {
		return err
	}
	mapped, unmapped := 0, 0
	for _, p := range points {
		title := devcode.MapSensorTitle(dev.Devcode, p.Title)
		if title != p.Title {
			mapped++
			fmt.Printf("  mapped    %-40s -> %s\n", p.Title, title)
		} else {
			unmapped++
			fmt.Printf("  unmapped  %s\n", p.Title)
		}
	}
	fmt.Printf("%d points, %d mapped, %d pass-through\n", len(points), mapped, unmapped)

	fields, err := client.GetDeviceControlFields(ctx, col.PN, dev.Devcode, dev.Devaddr, dev.SN)
	if err != nil {
		fmt.Printf("control fields unavailable: %v\n", err)
		return nil
	}
	params, err := client.GetDeviceParameters(ctx, col.PN, dev.Devcode, dev.Devaddr, dev.SN)
	if err != nil {
		fmt.Printf("parameters unavailable: %v\n", err)
		params = nil
	}
	report := diagnostics.BuildReport(&model.DeviceSnapshot{
		Collector: col,
		Device:    dev,
		Data:      points,
	}, fields, params, "")
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	outJSON := fs.String("json", "", "path to write JSON snapshot (optional)")
	outCSV := fs.String("csv", "", "path to write CSV snapshot (optional)")
	workers := fs.Int("workers", 4, "collector fetch concurrency")
	client, err := newClient(fs, args)
	if err != nil {
		return err
	}
	if *outJSON == "" && *outCSV == "" {
		return fmt.Errorf("no output specified: set -json and/or -csv")
	}
	if err := client.Setup(ctx); err != nil {
		return err
	}

	coord := coordinator.New(client, *workers)
	snaps, err := coord.Refresh(ctx)
	if err != nil {
		return err
	}
	if *outJSON != "" {
		if err := output.WriteJSON(*outJSON, snaps); err != nil {
			return err
		}
		log.Printf("wrote %s", *outJSON)
	}
	if *outCSV != "" {
		if err := output.WriteCSV(*outCSV, snaps); err != nil {
			return err
		}
		log.Printf("wrote %s", *outCSV)
	}
	return nil
}
