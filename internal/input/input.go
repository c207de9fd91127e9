// Package input opens the demodulated bit stream the decoder consumes:
// a file, standard input, or a UDP port fed datagrams by an external
// demodulator.
package input

import (
	"fmt"
	"io"
	"net"
	"os"
)

// Open returns the configured stream. listen takes precedence over path;
// a path of "-" or "" reads standard input.
func Open(path, listen string) (io.ReadCloser, error) {
	if listen != "" {
		return ListenUDP(listen)
	}
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return f, nil
}

// UDPSource reads the bit stream from UDP datagrams. Datagram boundaries
// carry no meaning; payloads are concatenated in arrival order.
type UDPSource struct {
	conn    *net.UDPConn
	pending []byte
	buf     [65536]byte
}

// ListenUDP binds addr (host:port, host may be empty) and returns a source
// over the datagrams received there.
func ListenUDP(addr string) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("input: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("input: bind %s: %w", addr, err)
	}
	return &UDPSource{conn: conn}, nil
}

// Addr returns the bound local address.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Read implements io.Reader. It blocks until at least one datagram has
// arrived; a datagram larger than p spills into the next call.
func (s *UDPSource) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		n, _, err := s.conn.ReadFromUDP(s.buf[:])
		if err != nil {
			return 0, err
		}
		s.pending = s.buf[:n]
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close releases the socket. A blocked Read returns with an error.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}
