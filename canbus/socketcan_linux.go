//go:build linux

package canbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollSlice bounds a single poll(2) so context cancellation is observed even
// when the context carries no deadline.
const pollSlice = 50 * time.Millisecond

// socketCAN implements Bus over a Linux SocketCAN raw socket.
type socketCAN struct {
	fd    int
	iface string

	closeOnce sync.Once
	closed    chan struct{}
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name (e.g., "can0").
func DialSocketCAN(iface string) (Bus, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}
	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("canbus: interface %s: %w", iface, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %s: %w", iface, err)
	}
	// Non-blocking so Send/Receive can honour the context via poll(2).
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("canbus: set nonblock: %w", err)
	}
	return &socketCAN{fd: fd, iface: iface, closed: make(chan struct{})}, nil
}

func (s *socketCAN) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = unix.Close(s.fd)
	})
	return err
}

func (s *socketCAN) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Send writes one frame using the Linux can_frame binary layout.
func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	var buf [FrameSize]byte
	if err := frame.marshalTo(buf[:]); err != nil {
		return err
	}
	for {
		if s.isClosed() {
			return ErrClosed
		}
		n, err := unix.Write(s.fd, buf[:])
		if err == nil {
			if n != FrameSize {
				return errors.New("canbus: short write")
			}
			return nil
		}
		if err == unix.EAGAIN || err == unix.ENOBUFS {
			if err := s.wait(ctx, unix.POLLOUT); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

// Receive reads one frame, skipping error frames reported by the controller.
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	var buf [FrameSize]byte
	for {
		if s.isClosed() {
			return Frame{}, ErrClosed
		}
		n, err := unix.Read(s.fd, buf[:])
		if err == nil {
			if n != FrameSize {
				return Frame{}, errors.New("canbus: short read")
			}
			if binary.LittleEndian.Uint32(buf[0:4])&canErrFlag != 0 {
				continue
			}
			var f Frame
			if err := f.UnmarshalBinary(buf[:]); err != nil {
				return Frame{}, err
			}
			return f, nil
		}
		if err == unix.EAGAIN {
			if err := s.wait(ctx, unix.POLLIN); err != nil {
				return Frame{}, err
			}
			continue
		}
		return Frame{}, err
	}
}

func (s *socketCAN) wait(ctx context.Context, events int16) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.isClosed() {
			return ErrClosed
		}
		timeout := pollSlice
		if deadline, ok := ctx.Deadline(); ok {
			if d := time.Until(deadline); d < timeout {
				timeout = d
			}
		}
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
		fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
		n, err := unix.Poll(fds, int(timeout/time.Millisecond)+1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}
