package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewClient creates an HTTP client with the given request timeout.
// A zero timeout means no timeout. skipSSLVerify disables certificate
// verification for self-hosted gateways with internal CAs.
func NewClient(timeout time.Duration, skipSSLVerify bool) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if skipSSLVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	return client
}
