// Package loader reads launch specs: the name and resources of an instance
// to create, as sent to the create endpoint or kept in YAML files.
//
// A file may hold several specs as a YAML document stream:
//
//	name: web1
//	image: "24.04"
//	cpus: 2
//	memory: 4G
//	---
//	name: db1
//	disk: 40G
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/naming"
)

// ErrInvalidSpec is wrapped by every validation failure.
var ErrInvalidSpec = errors.New("invalid launch spec")

var sizePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[KMGkmg]?i?[Bb]?$`)

// Spec describes one instance to launch. Empty fields use multipass
// defaults, except Image which falls back to the configured release
// when the command is normalized.
type Spec struct {
	Name   string `json:"name" yaml:"name"`
	Image  string `json:"image,omitempty" yaml:"image,omitempty"`
	CPUs   string `json:"cpus,omitempty" yaml:"cpus,omitempty"`
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`
	Disk   string `json:"disk,omitempty" yaml:"disk,omitempty"`
}

// UnmarshalJSON accepts cpus as a number or a string and "mem" as an alias
// for memory.
func (s *Spec) UnmarshalJSON(b []byte) error {
	type plain Spec
	var raw struct {
		plain
		CPUs json.RawMessage `json:"cpus"`
		Mem  string          `json:"mem"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Spec(raw.plain)

	if len(raw.CPUs) > 0 && string(raw.CPUs) != "null" {
		dec := json.NewDecoder(bytes.NewReader(raw.CPUs))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("failed to decode cpus: %w", err)
		}
		switch c := v.(type) {
		case string:
			s.CPUs = c
		case json.Number:
			s.CPUs = c.String()
		default:
			return fmt.Errorf("%w: cpus must be a number or a string", ErrInvalidSpec)
		}
	}
	if s.Memory == "" {
		s.Memory = raw.Mem
	}
	return nil
}

// Validate checks the name and that every value is a single safe word.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if !naming.ValidResourceName(s.Name) {
		return fmt.Errorf("%w: invalid name %q", ErrInvalidSpec, s.Name)
	}
	if s.Image != "" && strings.ContainsAny(s.Image, " \t\r\n;&|`$<>\"'") {
		return fmt.Errorf("%w: invalid image %q", ErrInvalidSpec, s.Image)
	}
	if s.CPUs != "" {
		if n := strings.TrimLeft(s.CPUs, "0123456789"); n != "" || s.CPUs == "0" {
			return fmt.Errorf("%w: invalid cpus %q", ErrInvalidSpec, s.CPUs)
		}
	}
	for _, f := range []struct{ field, value string }{{"memory", s.Memory}, {"disk", s.Disk}} {
		if f.value != "" && !sizePattern.MatchString(f.value) {
			return fmt.Errorf("%w: invalid %s %q", ErrInvalidSpec, f.field, f.value)
		}
	}
	return nil
}

// CommandLine validates the spec and renders it as a launch command.
func (s Spec) CommandLine() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	words := []string{command.Binary, string(command.OpLaunch), "--name", s.Name}
	for _, f := range []struct{ flag, value string }{
		{"--image", s.Image},
		{"--cpus", s.CPUs},
		{"--memory", s.Memory},
		{"--disk", s.Disk},
	} {
		if f.value != "" {
			words = append(words, f.flag, f.value)
		}
	}
	return strings.Join(words, " "), nil
}

// LoadFromFile loads every spec in a YAML file.
func LoadFromFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	specs, err := LoadFromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// LoadFromYAML loads every spec in a YAML document stream. Unknown keys,
// duplicate names and an empty stream are errors.
func LoadFromYAML(data []byte) ([]Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var specs []Spec
	seen := make(map[string]bool)
	for i := 0; ; i++ {
		var s Spec
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %d: %w", i, err)
		}
		if s == (Spec{}) {
			continue
		}

		applyDefaults(&s)
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: name %q is duplicated", ErrInvalidSpec, s.Name)
		}
		seen[s.Name] = true
		specs = append(specs, s)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no specs found", ErrInvalidSpec)
	}
	return specs, nil
}

func applyDefaults(s *Spec) {
	s.Name = strings.ToLower(strings.TrimSpace(s.Name))
	s.Image = strings.TrimSpace(s.Image)
}
