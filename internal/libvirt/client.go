package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

// Defaults for Connect.
const (
	DefaultSocket  = "/var/run/libvirt/libvirt-sock"
	DefaultTimeout = 5 * time.Second
)

// HostInfo is what the probe learns about the daemon.
type HostInfo struct {
	Socket     string `json:"socket" yaml:"socket"`
	LibVersion string `json:"libVersion" yaml:"libVersion"`
	HVVersion  string `json:"hypervisorVersion,omitempty" yaml:"hypervisorVersion,omitempty"`
	Hostname   string `json:"hostname" yaml:"hostname"`
	URI        string `json:"uri,omitempty" yaml:"uri,omitempty"`
}

// hostAPI is the subset of *libvirt.Libvirt the probe calls.
type hostAPI interface {
	ConnectGetLibVersion() (uint64, error)
	ConnectGetVersion() (uint64, error)
	ConnectGetHostname() (string, error)
	ConnectGetUri() (string, error)
}

// Client wraps a go-libvirt connection.
type Client struct {
	socket  string
	libvirt *libvirt.Libvirt
}

// Connect establishes a connection to the local libvirt daemon.
// It returns a Client that must be closed via Close() when done.
//
// If socketPath is empty, defaults to DefaultSocket (qemu:///system).
// If timeout is zero, defaults to DefaultTimeout.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}

	return &Client{socket: socketPath, libvirt: l}, nil
}

// ConnectWithContext establishes a connection with context support for cancellation.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		// Close a connection that completes after cancellation.
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// HostInfo reads versions and the host name from the daemon.
func (c *Client) HostInfo() (HostInfo, error) {
	if c.libvirt == nil {
		return HostInfo{}, fmt.Errorf("client not connected")
	}
	info, err := hostInfo(c.libvirt)
	info.Socket = c.socket
	return info, err
}

// Probe connects, reads HostInfo and disconnects.
func Probe(ctx context.Context, socketPath string, timeout time.Duration) (HostInfo, error) {
	c, err := ConnectWithContext(ctx, socketPath, timeout)
	if err != nil {
		return HostInfo{}, err
	}
	defer func() { _ = c.Close() }()

	return c.HostInfo()
}

func hostInfo(api hostAPI) (HostInfo, error) {
	lib, err := api.ConnectGetLibVersion()
	if err != nil {
		return HostInfo{}, fmt.Errorf("libvirt connection is dead: %w", err)
	}
	hostname, err := api.ConnectGetHostname()
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to get libvirt hostname: %w", err)
	}

	info := HostInfo{LibVersion: FormatVersion(lib), Hostname: hostname}
	if uri, err := api.ConnectGetUri(); err == nil {
		info.URI = uri
	}
	// Without a hypervisor driver loaded this fails; the library version
	// is enough to report the daemon as up.
	if hv, err := api.ConnectGetVersion(); err == nil && hv > 0 {
		info.HVVersion = FormatVersion(hv)
	}
	return info, nil
}

// FormatVersion renders libvirt's packed version number
// (major*1,000,000 + minor*1,000 + release) as "major.minor.release".
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1_000_000, (v/1_000)%1_000, v%1_000)
}
