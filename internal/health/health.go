// Package health reports whether vmchat's dependencies are usable: the
// multipass binary, the chat model and, optionally, libvirt.
package health

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jbweber/vmchat/internal/libvirt"
)

// Overall statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// BinaryResolver locates the multipass binary.
//
// In production, this is satisfied by *executor.Executor.
type BinaryResolver interface {
	ResolveBinary() (string, error)
}

// Versioner reports the multipass version.
//
// In production, this is satisfied by *vm.Manager.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// ModelChecker verifies the chat model.
//
// In production, this is satisfied by llm.Provider.
type ModelChecker interface {
	Check(ctx context.Context) error
	Model() string
}

// ProbeFunc reads host information from a libvirt socket.
type ProbeFunc func(ctx context.Context, socket string, timeout time.Duration) (libvirt.HostInfo, error)

// MultipassCheck is the multipass part of a Report.
type MultipassCheck struct {
	Available bool   `json:"available" yaml:"available"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ModelCheck is the model part of a Report.
type ModelCheck struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Name  string `json:"name" yaml:"name"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// LibvirtCheck is the libvirt part of a Report.
type LibvirtCheck struct {
	OK    bool              `json:"ok" yaml:"ok"`
	Host  *libvirt.HostInfo `json:"host,omitempty" yaml:"host,omitempty"`
	Error string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the result of a health check.
type Report struct {
	OK        bool           `json:"ok" yaml:"ok"`
	Status    string         `json:"status" yaml:"status"`
	Multipass MultipassCheck `json:"multipass" yaml:"multipass"`
	Model     *ModelCheck    `json:"model,omitempty" yaml:"model,omitempty"`
	Libvirt   *LibvirtCheck  `json:"libvirt,omitempty" yaml:"libvirt,omitempty"`
}

// Options configures a Checker. Model and LibvirtSocket are optional.
type Options struct {
	Binary    BinaryResolver
	Versioner Versioner
	Model     ModelChecker

	LibvirtSocket string
	Timeout       time.Duration
	Probe         ProbeFunc

	Logger *slog.Logger
}

// Checker runs health checks.
type Checker struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Checker.
func New(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = libvirt.DefaultTimeout
	}
	if opts.Probe == nil {
		opts.Probe = libvirt.Probe
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{opts: opts, logger: logger}
}

// Check runs every configured check. The report is OK when multipass is
// available and every other configured check passed.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{Multipass: c.checkMultipass(ctx)}
	ok := r.Multipass.Available

	if c.opts.Model != nil {
		mc := ModelCheck{Name: c.opts.Model.Model(), OK: true}
		if err := c.opts.Model.Check(ctx); err != nil {
			c.logger.Warn("Model check failed", "model", mc.Name, "error", err)
			mc.OK = false
			mc.Error = err.Error()
		}
		r.Model = &mc
		ok = ok && mc.OK
	}

	if c.opts.LibvirtSocket != "" {
		lc := LibvirtCheck{}
		info, err := c.opts.Probe(ctx, c.opts.LibvirtSocket, c.opts.Timeout)
		if err != nil {
			c.logger.Warn("Libvirt probe failed", "socket", c.opts.LibvirtSocket, "error", err)
			lc.Error = err.Error()
		} else {
			lc.OK = true
			lc.Host = &info
		}
		r.Libvirt = &lc
		ok = ok && lc.OK
	}

	r.OK = ok
	r.Status = StatusDegraded
	if ok {
		r.Status = StatusHealthy
	}
	return r
}

func (c *Checker) checkMultipass(ctx context.Context) MultipassCheck {
	path, err := c.opts.Binary.ResolveBinary()
	if err != nil {
		return MultipassCheck{Error: err.Error()}
	}

	mc := MultipassCheck{Available: true, Path: path}
	version, err := c.opts.Versioner.Version(ctx)
	if err != nil {
		mc.Error = err.Error()
		return mc
	}
	mc.Version = firstLine(version)
	return mc
}

// firstLine keeps "multipass  1.14.0" and drops the daemon line.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}
