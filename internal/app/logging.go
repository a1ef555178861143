package app

import (
	"fmt"
	"io"
	"log"
	"os"

	serial "github.com/jacobsa/go-serial/serial"
)

// SetupSerialLog mirrors the standard logger onto a serial console.
// With an empty port name logging is left untouched and the returned closer
// does nothing.
func SetupSerialLog(portName string, baud int) (io.Closer, error) {
	if portName == "" {
		return nopCloser{}, nil
	}

	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial log %s: %w", portName, err)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, port))
	log.Printf("log: mirroring to %s at %d baud", portName, baud)
	return port, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
