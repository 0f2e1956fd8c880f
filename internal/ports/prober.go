package ports

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
)

// Prober checks whether something answers on host:port. A nil error means
// the port is reachable, regardless of what the service said.
type Prober interface {
	Probe(ctx context.Context, host string, port int) error
}

// HTTPProber issues one GET per probe. Any HTTP response, including an error
// status, counts as reachable; only transport failures are reported.
type HTTPProber struct {
	client *retryablehttp.Client
	scheme string
	path   string
}

// NewHTTPProber returns a prober that requests scheme://host:port/.
func NewHTTPProber(scheme string) *HTTPProber {
	if scheme == "" {
		scheme = "http"
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &HTTPProber{client: client, scheme: scheme, path: "/"}
}

func (p *HTTPProber) Probe(ctx context.Context, host string, port int) error {
	endpoint := fmt.Sprintf("%s://%s%s", p.scheme, net.JoinHostPort(host, strconv.Itoa(port)), p.path)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return nil
}

// DialProber treats an accepted TCP connection as reachable.
type DialProber struct {
	dialer net.Dialer
}

// NewDialProber returns a TCP connect prober.
func NewDialProber() *DialProber {
	return &DialProber{}
}

func (p *DialProber) Probe(ctx context.Context, host string, port int) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}
