package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("empty address dials directly", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Proxied() {
			t.Error("expected direct client")
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("direct client status = %v", status)
		}
	})

	t.Run("valid proxy address creates proxied client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !client.Proxied() {
			t.Error("expected proxied client")
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
	})

	t.Run("invalid address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient("127.0.0.1", 30*time.Second)
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("", time.Second, WithInsecureSkipVerify(true))
		if err != nil {
			t.Fatal(err)
		}
		tr, ok := client.NewHTTPClient().Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected *http.Transport")
		}
		if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
			t.Error("expected TLS verification to be disabled")
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"[::1]:9050", true},
		{"127.0.0.1:65535", true},
		{"", false},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"socks5://127.0.0.1:9050", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

// startMockProxy accepts one connection and hands it to handle.
func startMockProxy(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock proxy: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		handle func(conn net.Conn)
		want   ProxyStatus
	}{
		{
			name: "non SOCKS5 server",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "SOCKS5 requiring auth",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte{0x05, 0xFF})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "wrong version in CONNECT reply",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte{0x05, 0x00})
				_, _ = conn.Read(make([]byte, 256))
				_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "valid SOCKS5 proxy",
			handle: func(conn net.Conn) {
				_, _ = conn.Read(make([]byte, 3))
				_, _ = conn.Write([]byte{0x05, 0x00})
				_, _ = conn.Read(make([]byte, 256))
				// host unreachable is still a SOCKS5 answer
				_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			},
			want: ProxyStatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(startMockProxy(t, tt.handle), 30*time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if got := client.CheckConnection(context.Background()); got != tt.want {
				t.Errorf("CheckConnection() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no listener", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("CheckConnection() = %v, want %v", got, ProxyStatusCannotConnect)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59998", 30*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		got := client.CheckConnection(ctx)
		if got != ProxyStatusCannotConnect && got != ProxyStatusTimeout {
			t.Errorf("CheckConnection() = %v", got)
		}
	})
}

// serveSOCKS5 is a minimal no-auth SOCKS5 CONNECT relay.
func serveSOCKS5(conn net.Conn) {
	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, greeting[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	var host string
	switch header[3] {
	case 0x01:
		ip := make([]byte, net.IPv4len)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	case 0x04:
		ip := make([]byte, net.IPv6len)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	default:
		return
	}
	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBuf); err != nil {
		return
	}
	target := net.JoinHostPort(host, fmt.Sprint(binary.BigEndian.Uint16(portBuf)))

	upstream, err := net.Dial("tcp", target) //nolint:noctx // test code
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()
	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, conn)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(conn, upstream)
		done <- struct{}{}
	}()
	<-done
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/loop" {
			http.Redirect(w, r, "/loop", http.StatusFound)
			return
		}
		fmt.Fprintf(w, "cookie=%s token=%s", r.Header.Get("Cookie"), r.Header.Get("X-Token"))
	}))
	t.Cleanup(server.Close)

	get := func(t *testing.T, client *http.Client, url string) (int, string) {
		t.Helper()
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, string(body)
	}

	t.Run("direct", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient("", 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		client := c.NewHTTPClient()
		if client.Jar == nil {
			t.Error("expected cookie jar")
		}
		if client.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v", client.Timeout)
		}
		if code, _ := get(t, client, server.URL+"/"); code != http.StatusOK {
			t.Errorf("status = %d", code)
		}
	})

	t.Run("stops after redirect limit", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient("", 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if code, _ := get(t, c.NewHTTPClient(), server.URL+"/loop"); code != http.StatusFound {
			t.Errorf("expected last redirect response, got %d", code)
		}
	})

	t.Run("injects cookie and headers", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient("", 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		client := c.HTTPClientWithConfig("session=abc", map[string]string{"X-Token": "t1"})
		_, body := get(t, client, server.URL+"/")
		if body != "cookie=session=abc token=t1" {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("through SOCKS5 proxy", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient(startMockProxy(t, serveSOCKS5), 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		client := c.HTTPClientWithConfig("", map[string]string{"X-Token": "proxied"})
		_, body := get(t, client, server.URL+"/")
		if !strings.HasSuffix(body, "token=proxied") {
			t.Errorf("unexpected body %q", body)
		}
	})
}

func TestHeaderInjectingTransport(t *testing.T) {
	t.Parallel()

	var got http.Header
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req.Header
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})
	tr := &headerInjectingTransport{
		base:    base,
		cookie:  "session=abc",
		headers: map[string]string{"Authorization": "Bearer x"},
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://ex.org/", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Cookie", "lang=en")

	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if got.Get("Cookie") != "lang=en; session=abc" {
		t.Errorf("Cookie = %q", got.Get("Cookie"))
	}
	if got.Get("Authorization") != "Bearer x" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("original request must not be modified")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		str    string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			t.Parallel()
			if tt.status.String() != tt.str {
				t.Errorf("String() = %q", tt.status.String())
			}
			if !errors.Is(tt.status.Error(), tt.err) {
				t.Errorf("Error() = %v, want %v", tt.status.Error(), tt.err)
			}
		})
	}

	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Error() == nil {
		t.Error("unexpected unknown status handling")
	}
}
