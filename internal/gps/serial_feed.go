package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/racehud/internal/log"
)

// SerialFeed reads NMEA sentences from a GPS receiver on a UART.
type SerialFeed struct {
	PortName string
	BaudRate int

	// open is replaced in tests.
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

// NewSerialFeed returns a feed for the receiver on portName
// (e.g. /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0).
func NewSerialFeed(portName string, baudRate int) *SerialFeed {
	return &SerialFeed{PortName: portName, BaudRate: baudRate, open: serial.Open}
}

// Run opens the port and emits one Fix per RMC sentence until ctx is
// canceled or the port fails.
func (s *SerialFeed) Run(ctx context.Context, emit func(Fix)) error {
	opts := serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              uint(s.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := s.open(opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.PortName, err)
	}
	logger := log.New("gps-serial")
	logger.Infof("serial port opened on %s at %d baud", s.PortName, s.BaudRate)

	// Closing the port is the only way to unblock a pending read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	return scanSentences(ctx, port, emit, logger)
}

func scanSentences(ctx context.Context, r io.Reader, emit func(Fix), logger log.Logger) error {
	reader := bufio.NewReader(r)
	var current Fix

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF && line == "" {
				return err
			}
		}

		complete, perr := ParseSentence(line, &current)
		if perr != nil {
			// noisy GPS or partial sentences
			logger.Debugf("nmea parse error: %v (line: %q)", perr, line)
		} else if complete {
			emit(current)
		}

		if err != nil {
			return err
		}
	}
}
