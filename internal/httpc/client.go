// Package httpc builds HTTP clients with explicit timeouts. Collaborator
// calls must never hang the pipeline, so nothing here uses
// http.DefaultClient.
package httpc

import (
	"net"
	"net/http"
	"time"
)

const (
	connectTimeout  = 10 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second
)

// NewClient returns a client whose requests fail after timeout,
// connection setup included.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
