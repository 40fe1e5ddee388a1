// Command haldexctl talks to a running interceptor over the vehicle bus
// using the master protocol.
//
//	haldexctl [flags] mode <stock|fwd|5050|custom> [threshold]
//	haldexctl [flags] lockpoint <index> <speed> <lock> [intensity]
//	haldexctl [flags] curve <speed:lock>...
//	haldexctl [flags] clear
//	haldexctl [flags] status
//	haldexctl [flags] watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/notnil/haldex/canbus"
	"github.com/notnil/haldex/haldex"
)

var errUsage = errors.New("usage: haldexctl [flags] mode|lockpoint|curve|clear|status|watch ...")

func main() {
	var (
		driver  = flag.String("driver", canbus.DriverSocketCAN, "Bus driver (socketcan|brutella|slcan)")
		device  = flag.String("device", "can1", "Vehicle bus interface or serial port")
		baud    = flag.Int("baud", 115200, "Serial speed for slcan adapters")
		timeout = flag.Duration("timeout", 500*time.Millisecond, "Reply timeout")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	bus, err := canbus.Open(*driver, *device, canbus.OpenOptions{SLCAN: canbus.SLCANOptions{Baud: *baud}})
	if err != nil {
		pterm.Error.Printf("open %s: %v\n", *device, err)
		os.Exit(1)
	}
	mux := canbus.NewMux(bus)
	m := haldex.NewMaster(bus, mux, *timeout)

	err = run(ctx, m, flag.Args())
	mux.Close()
	bus.Close()
	if err != nil {
		pterm.Error.Println(err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, m *haldex.Master, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "mode":
		return cmdMode(ctx, m, args)
	case "lockpoint":
		return cmdLockpoint(ctx, m, args)
	case "curve":
		return cmdCurve(ctx, m, args)
	case "clear":
		if err := m.Clear(ctx); err != nil {
			return err
		}
		pterm.Success.Println("Lockpoints cleared")
		return nil
	case "status":
		return cmdStatus(ctx, m)
	case "watch":
		return cmdWatch(ctx, m)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func cmdMode(ctx context.Context, m *haldex.Master, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: mode <name> [threshold]", errUsage)
	}
	mode, err := haldex.ParseMode(args[0])
	if err != nil {
		return err
	}
	var threshold uint8
	if len(args) == 2 {
		if threshold, err = parseByte("threshold", args[1]); err != nil {
			return err
		}
	}
	info, err := m.SetMode(ctx, mode, threshold)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Mode %s, pedal threshold %d%%\n", mode, threshold)
	pterm.Info.Printf("Lock target %d%%, vehicle speed %d\n", info.LockTarget, info.VehicleSpeed)
	return nil
}

func cmdLockpoint(ctx context.Context, m *haldex.Master, args []string) error {
	index, lp, err := parseLockpointArgs(args)
	if err != nil {
		return err
	}
	if err := m.SetLockpoint(ctx, index, lp); err != nil {
		return err
	}
	pterm.Success.Printf("Lockpoint %d: %d km/h -> %d%%\n", index, lp.Speed, lp.Lock)
	return nil
}

func cmdCurve(ctx context.Context, m *haldex.Master, args []string) error {
	points, err := parseCurve(args)
	if err != nil {
		return err
	}
	if err := m.SetCurve(ctx, points); err != nil {
		return err
	}
	report, err := m.CheckLockpoints(ctx)
	if err != nil {
		return err
	}
	want := uint16(1)<<len(points) - 1
	if observable := want & 0xFF; report.Mask&observable != observable {
		return fmt.Errorf("interceptor reports mask 0x%02X, expected 0x%02X", report.Mask, observable)
	}
	if len(points) > 8 {
		pterm.Warning.Println("Slots 8 and 9 cannot be confirmed by the interceptor")
	}
	pterm.Success.Printf("Curve with %d points programmed\n", len(points))
	return nil
}

func cmdStatus(ctx context.Context, m *haldex.Master) error {
	mode, err := m.CheckMode(ctx)
	if err != nil {
		return err
	}
	lps, err := m.CheckLockpoints(ctx)
	if err != nil {
		return err
	}
	data := pterm.TableData{
		{"Field", "Value"},
		{"Mode", mode.Mode.String()},
		{"Pedal threshold", fmt.Sprintf("%d%%", mode.PedalThreshold)},
		{"Lockpoints set", formatMask(lps.Mask)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func cmdWatch(ctx context.Context, m *haldex.Master) error {
	ch, cancel := m.SubscribeInfo(16)
	defer cancel()
	pterm.Info.Println("Watching interceptor status, Ctrl-C to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-ch:
			if !ok {
				return canbus.ErrClosed
			}
			pterm.Printf("%s  lock %3d%%  speed %3d\n", time.Now().Format("15:04:05.000"), r.LockTarget, r.VehicleSpeed)
		}
	}
}

func parseByte(name, s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a value in 0..255", name, s)
	}
	return uint8(v), nil
}

func parseLockpointArgs(args []string) (uint8, haldex.Lockpoint, error) {
	if len(args) < 3 || len(args) > 4 {
		return 0, haldex.Lockpoint{}, fmt.Errorf("%w: lockpoint <index> <speed> <lock> [intensity]", errUsage)
	}
	var vals [4]uint8
	names := [4]string{"index", "speed", "lock", "intensity"}
	for i, a := range args {
		v, err := parseByte(names[i], a)
		if err != nil {
			return 0, haldex.Lockpoint{}, err
		}
		vals[i] = v
	}
	if int(vals[0]) >= haldex.TableSize {
		return 0, haldex.Lockpoint{}, fmt.Errorf("index: %d out of range 0..%d", vals[0], haldex.TableSize-1)
	}
	if vals[2] > 100 {
		return 0, haldex.Lockpoint{}, fmt.Errorf("lock: %d%% above 100%%", vals[2])
	}
	return vals[0], haldex.Lockpoint{Speed: vals[1], Lock: vals[2], Intensity: vals[3]}, nil
}

// parseCurve reads "speed:lock" pairs.
func parseCurve(args []string) ([]haldex.Lockpoint, error) {
	if len(args) == 0 || len(args) > haldex.TableSize {
		return nil, fmt.Errorf("%w: curve takes 1..%d speed:lock pairs", errUsage, haldex.TableSize)
	}
	points := make([]haldex.Lockpoint, 0, len(args))
	for _, a := range args {
		s, l, ok := strings.Cut(a, ":")
		if !ok {
			return nil, fmt.Errorf("curve: %q is not speed:lock", a)
		}
		speed, err := parseByte("speed", s)
		if err != nil {
			return nil, err
		}
		lock, err := parseByte("lock", l)
		if err != nil {
			return nil, err
		}
		if lock > 100 {
			return nil, fmt.Errorf("lock: %d%% above 100%%", lock)
		}
		points = append(points, haldex.Lockpoint{Speed: speed, Lock: lock})
	}
	return points, nil
}

// formatMask lists the observable slots, e.g. "0 1 4".
func formatMask(mask uint16) string {
	var parts []string
	for i := 0; i < 8; i++ {
		if mask&(1<<i) != 0 {
			parts = append(parts, strconv.Itoa(i))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
