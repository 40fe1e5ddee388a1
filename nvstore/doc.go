// Package nvstore persists the interceptor configuration on a small
// byte-addressed non-volatile device.
//
// The device holds a one byte sentinel at offset 0 and the configuration
// image at offset 4. An erased device reads 0xFF everywhere, which marks a
// first boot.
package nvstore
