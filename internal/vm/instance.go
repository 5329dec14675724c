package vm

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Instance is one entry of multipass list or info output. The raw JSON is
// kept and marshalled back unchanged; accessors read the fields the CLI
// and API render.
type Instance struct {
	raw    json.RawMessage
	fields instanceFields
}

type instanceFields struct {
	Name      string           `json:"name"`
	State     string           `json:"state"`
	IPv4      []string         `json:"ipv4"`
	Release   string           `json:"release"`
	CPUCount  quantity         `json:"cpu_count"`
	CPUs      quantity         `json:"cpus"`
	Memory    usage            `json:"memory"`
	Disks     map[string]usage `json:"disks"`
	ImageHash string           `json:"image_hash"`
}

type usage struct {
	Total quantity `json:"total"`
	Used  quantity `json:"used"`
}

// quantity accepts numbers and numeric strings; multipass reports both.
type quantity struct {
	value int64
	valid bool
}

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*q = quantity{}
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*q = quantity{value: n, valid: true}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Values like "N/A" on a stopped instance.
		*q = quantity{}
		return nil
	}
	*q = quantity{value: int64(f), valid: true}
	return nil
}

// NewInstance parses one instance object. name is used when the object
// carries no name of its own, as in info output where entries are keyed by
// name.
func NewInstance(raw []byte, name string) (Instance, error) {
	var inst Instance
	if err := inst.UnmarshalJSON(raw); err != nil {
		return Instance{}, err
	}
	if inst.fields.Name == "" {
		inst.fields.Name = name
	}
	return inst, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Instance) UnmarshalJSON(b []byte) error {
	var f instanceFields
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("failed to parse instance: %w", err)
	}
	i.raw = slices.Clone(b)
	i.fields = f
	return nil
}

// MarshalJSON returns the JSON the instance was parsed from.
func (i Instance) MarshalJSON() ([]byte, error) {
	if len(i.raw) == 0 {
		return []byte("{}"), nil
	}
	return i.raw, nil
}

// MarshalYAML renders the raw object through a generic value.
func (i Instance) MarshalYAML() (any, error) {
	var v map[string]any
	if len(i.raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(i.raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode instance: %w", err)
	}
	return v, nil
}

// Raw returns the original JSON object.
func (i Instance) Raw() json.RawMessage { return i.raw }

func (i Instance) Name() string      { return i.fields.Name }
func (i Instance) State() string     { return i.fields.State }
func (i Instance) IPv4() []string    { return slices.Clone(i.fields.IPv4) }
func (i Instance) Release() string   { return i.fields.Release }
func (i Instance) ImageHash() string { return i.fields.ImageHash }

// CPUs returns the CPU count, or 0 if it is not reported.
func (i Instance) CPUs() int {
	if i.fields.CPUCount.valid {
		return int(i.fields.CPUCount.value)
	}
	if i.fields.CPUs.valid {
		return int(i.fields.CPUs.value)
	}
	return 0
}

// MemoryUsed returns used memory in bytes, or -1 if it is not reported.
func (i Instance) MemoryUsed() int64 { return valueOr(i.fields.Memory.Used) }

// MemoryTotal returns total memory in bytes, or -1 if it is not reported.
func (i Instance) MemoryTotal() int64 { return valueOr(i.fields.Memory.Total) }

// DiskUsed returns used disk bytes summed across disks, or -1.
func (i Instance) DiskUsed() int64 {
	return i.sumDisks(func(u usage) quantity { return u.Used })
}

// DiskTotal returns disk size in bytes summed across disks, or -1.
func (i Instance) DiskTotal() int64 {
	return i.sumDisks(func(u usage) quantity { return u.Total })
}

func (i Instance) sumDisks(pick func(usage) quantity) int64 {
	var (
		sum   int64
		found bool
	)
	for _, d := range i.fields.Disks {
		if q := pick(d); q.valid {
			sum += q.value
			found = true
		}
	}
	if !found {
		return -1
	}
	return sum
}

func valueOr(q quantity) int64 {
	if !q.valid {
		return -1
	}
	return q.value
}

// merge overlays the fields of detail onto base, keeping base's keys that
// detail lacks (such as the name list entries carry).
func merge(base, detail Instance) (Instance, error) {
	var a, b map[string]json.RawMessage
	if err := json.Unmarshal(base.raw, &a); err != nil {
		return Instance{}, fmt.Errorf("failed to decode list entry: %w", err)
	}
	if err := json.Unmarshal(detail.raw, &b); err != nil {
		return Instance{}, fmt.Errorf("failed to decode info entry: %w", err)
	}
	maps.Copy(a, b)
	raw, err := json.Marshal(a)
	if err != nil {
		return Instance{}, fmt.Errorf("failed to encode merged entry: %w", err)
	}
	return NewInstance(raw, base.Name())
}

// Summary is the flattened view of an instance returned by the detailed
// list endpoint.
type Summary struct {
	Name      string   `json:"name" yaml:"name"`
	State     string   `json:"state" yaml:"state"`
	IPv4      []string `json:"ipv4" yaml:"ipv4"`
	Release   string   `json:"release" yaml:"release"`
	CPUs      string   `json:"cpus" yaml:"cpus"`
	ImageHash string   `json:"image_hash" yaml:"image_hash"`
	Memory    string   `json:"memory" yaml:"memory"`
	Disk      string   `json:"disk" yaml:"disk"`
}

const notAvailable = "N/A"

// Summary flattens the instance, rendering sizes as "used / total".
func (i Instance) Summary() Summary {
	cpus := notAvailable
	if n := i.CPUs(); n > 0 {
		cpus = strconv.Itoa(n)
	}
	ipv4 := i.IPv4()
	if ipv4 == nil {
		ipv4 = []string{}
	}
	return Summary{
		Name:      i.Name(),
		State:     orNA(i.State()),
		IPv4:      ipv4,
		Release:   orNA(i.Release()),
		CPUs:      cpus,
		ImageHash: orNA(i.ImageHash()),
		Memory:    FormatBytes(i.MemoryUsed()) + " / " + FormatBytes(i.MemoryTotal()),
		Disk:      FormatBytes(i.DiskUsed()) + " / " + FormatBytes(i.DiskTotal()),
	}
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// FormatBytes renders a byte count with a base-1024 unit ("512B", "1.5GB").
// Negative values mean unknown and render as "N/A".
func FormatBytes(b int64) string {
	if b < 0 {
		return notAvailable
	}
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	v := float64(b) / unit
	i := 0
	for v >= unit && i < len(units)-1 {
		v /= unit
		i++
	}
	return fmt.Sprintf("%.1f%s", v, units[i])
}
