package serialmux

import "io"

// SerialPorter is the minimal interface needed for a serial port, so tests
// can run without hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
