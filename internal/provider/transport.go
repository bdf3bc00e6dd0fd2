package provider

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// DefaultTimeout is the conservative per-call deadline applied to the
// shared upstream client. Timeouts surface as upstream errors.
const DefaultTimeout = 60 * time.Second

// NewTransport returns a tuned *http.Transport with connection pooling
// and optional DNS caching for the upstream provider APIs.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// NewClient returns the shared upstream HTTP client with the default
// per-call deadline.
func NewClient(resolver *dnscache.Resolver) *http.Client {
	return &http.Client{
		Transport: NewTransport(resolver),
		Timeout:   DefaultTimeout,
	}
}
