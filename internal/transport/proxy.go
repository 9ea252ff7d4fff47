package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// checkProxyTimeout bounds the SOCKS5 greeting exchange.
const checkProxyTimeout = 3 * time.Second

// SOCKS5 protocol constants
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// CheckProxy verifies that the configured proxy speaks SOCKS5 and accepts
// clients without authentication. It is a no-op without a proxy.
//
// Only the method negotiation is performed; no CONNECT is sent, so the
// check touches no remote host.
func (c *Client) CheckProxy(ctx context.Context) error {
	if c.proxyAddress == "" {
		return nil
	}
	return checkSOCKS5(ctx, c.proxyAddress)
}

func checkSOCKS5(ctx context.Context, address string) error {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrProxyTimeout
		}
		return ErrProxyCannotConnect
	}
	defer conn.Close() //nolint:errcheck // check connection

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ErrProxyCannotConnect
	}

	// Client greeting: version, one method, "no authentication".
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ErrProxyCannotConnect
	}

	// Server choice: version, selected method.
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ErrProxyTimeout
		}
		return ErrProxyNotSOCKS5
	}
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ErrProxyNotSOCKS5
	}
	return nil
}
