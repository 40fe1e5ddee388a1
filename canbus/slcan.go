package canbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SLCAN (Lawicel) ASCII protocol used by USB-serial CAN adapters.

var slcanBitrates = map[uint32]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// ErrSLCANSyntax reports an SLCAN line that could not be decoded.
var ErrSLCANSyntax = errors.New("canbus: malformed slcan frame")

// EncodeSLCAN converts a frame into its SLCAN transmit command including the
// trailing carriage return, e.g. "t1232ABCD\r".
func EncodeSLCAN(f Frame) string {
	var b strings.Builder
	switch {
	case f.RTR && f.Extended:
		b.WriteByte('R')
	case f.RTR:
		b.WriteByte('r')
	case f.Extended:
		b.WriteByte('T')
	default:
		b.WriteByte('t')
	}
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID&MaxExtID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID&MaxStdID)
	}
	b.WriteByte('0' + f.Len&0x0F)
	if !f.RTR {
		for _, d := range f.Payload() {
			fmt.Fprintf(&b, "%02X", d)
		}
	}
	b.WriteByte('\r')
	return b.String()
}

// DecodeSLCAN parses one SLCAN frame line (with or without the trailing
// carriage return). Adapters may append a 4 digit timestamp which is ignored.
func DecodeSLCAN(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Frame{}, ErrSLCANSyntax
	}
	var f Frame
	idLen := 3
	switch line[0] {
	case 't':
	case 'T':
		f.Extended, idLen = true, 8
	case 'r':
		f.RTR = true
	case 'R':
		f.Extended, f.RTR, idLen = true, true, 8
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrSLCANSyntax, line)
	}
	if len(line) < 1+idLen+1 {
		return Frame{}, fmt.Errorf("%w: %q", ErrSLCANSyntax, line)
	}
	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %q", ErrSLCANSyntax, line)
	}
	f.ID = uint32(id)
	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return Frame{}, fmt.Errorf("%w: %q", ErrSLCANSyntax, line)
	}
	f.Len = dlc - '0'
	if !f.RTR {
		data := line[2+idLen:]
		if len(data) < int(f.Len)*2 {
			return Frame{}, fmt.Errorf("%w: %q", ErrSLCANSyntax, line)
		}
		for i := 0; i < int(f.Len); i++ {
			v, err := strconv.ParseUint(data[2*i:2*i+2], 16, 8)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: %q", ErrSLCANSyntax, line)
			}
			f.Data[i] = byte(v)
		}
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// SLCANOptions configures DialSLCAN.
type SLCANOptions struct {
	// Baud is the serial line speed. Zero selects 115200.
	Baud int
	// Bitrate is the CAN bitrate in bit/s. Zero selects 500000.
	Bitrate uint32
}

type slcanBus struct {
	port serial.Port
	name string

	wmu sync.Mutex
	rx  chan Frame

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
	done      chan struct{}
}

// DialSLCAN opens an SLCAN adapter on the given serial port, sets the CAN
// bitrate and opens the channel.
func DialSLCAN(portName string, opts SLCANOptions) (Bus, error) {
	if opts.Baud == 0 {
		opts.Baud = 115200
	}
	if opts.Bitrate == 0 {
		opts.Bitrate = 500000
	}
	code, ok := slcanBitrates[opts.Bitrate]
	if !ok {
		return nil, fmt.Errorf("canbus: slcan bitrate %d not supported", opts.Bitrate)
	}
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: opts.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("canbus: open slcan port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("canbus: slcan read timeout: %w", err)
	}
	// Close any channel left open by a previous session before reconfiguring.
	for _, cmd := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if _, err := port.Write([]byte(cmd)); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("canbus: slcan init %q: %w", strings.TrimSpace(cmd), err)
		}
	}
	b := &slcanBus{
		port:   port,
		name:   portName,
		rx:     make(chan Frame, 256),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

func (b *slcanBus) readLoop() {
	defer close(b.done)
	buf := make([]byte, 256)
	var line []byte
	for {
		select {
		case <-b.closed:
			return
		default:
		}
		n, err := b.port.Read(buf)
		if err != nil {
			b.readErr = err
			return
		}
		for _, c := range buf[:n] {
			switch c {
			case '\r', '\a':
				if f, err := DecodeSLCAN(string(line)); err == nil {
					select {
					case b.rx <- f:
					default:
					}
				}
				line = line[:0]
			default:
				if len(line) < 64 {
					line = append(line, c)
				}
			}
		}
	}
}

func (b *slcanBus) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if _, err := b.port.Write([]byte(EncodeSLCAN(frame))); err != nil {
		return fmt.Errorf("canbus: slcan write %s: %w", b.name, err)
	}
	return nil
}

func (b *slcanBus) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-b.rx:
		return f, nil
	case <-b.done:
		select {
		case <-b.closed:
			return Frame{}, ErrClosed
		default:
		}
		if b.readErr != nil {
			return Frame{}, fmt.Errorf("canbus: slcan read %s: %w", b.name, b.readErr)
		}
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (b *slcanBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		b.wmu.Lock()
		_, _ = b.port.Write([]byte("C\r"))
		b.wmu.Unlock()
		err = b.port.Close()
		<-b.done
	})
	return err
}
