package rtd

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI is an open SPI port and its connection.
type SPI struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI initializes the host drivers and connects to the named port
// ("" selects the first one) in mode 1, 8 bits per word, MSB first.
func OpenSPI(name string, speedHz int64) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	c, err := p.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode1, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", name, err)
	}
	return &SPI{port: p, conn: c}, nil
}

// Tx implements Conn.
func (s *SPI) Tx(w, r []byte) error {
	return s.conn.Tx(w, r)
}

// Close releases the port.
func (s *SPI) Close() error {
	return s.port.Close()
}
