// Package canbus provides the CAN bus layer used by the interceptor: a
// classical CAN Frame type with validation and binary marshaling helpers,
// the Bus interface, and several Bus implementations.
//
// It includes:
//   - An in-memory loopback bus for tests and simulations
//   - A Linux SocketCAN driver built on golang.org/x/sys/unix
//   - A callback driven SocketCAN driver backed by github.com/brutella/can
//   - An SLCAN (Lawicel) driver for USB-serial adapters
//   - Mux, which fans frames from one Bus out to synchronous handlers and
//     buffered subscribers
//   - LoggedBus, a zerolog decorator for tracing traffic
package canbus
