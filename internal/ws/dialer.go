package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/interfaces"
)

// Dialer opens websocket connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL, proxy string) (interfaces.WSConn, error)
}

// GorillaDialer dials with gorilla/websocket. An explicit proxy wins over
// the environment.
type GorillaDialer struct {
	HandshakeTimeout time.Duration
}

func (d GorillaDialer) Dial(ctx context.Context, rawURL, proxy string) (interfaces.WSConn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: false},
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", proxy, err)
		}
		dialer.Proxy = http.ProxyURL(u)
	}

	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return interfaces.WSShim{Conn: conn}, nil
}
