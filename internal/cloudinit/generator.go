// Package cloudinit renders cloud-init user-data for multipass launches.
//
// multipass accepts user-data as a plain #cloud-config YAML file through
// `launch --cloud-init <path>`, so only the user-data document is produced
// here; multipass generates meta-data and networking itself.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
package cloudinit

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/vmchat/internal/config"
	"github.com/jbweber/vmchat/internal/naming"
)

// UserData represents the cloud-config user-data structure.
// This is marshaled to YAML and prefixed with "#cloud-config" header.
type UserData struct {
	Hostname          string    `yaml:"hostname"`
	FQDN              string    `yaml:"fqdn"`
	SSHAuthorizedKeys []string  `yaml:"ssh_authorized_keys,omitempty"`
	Chpasswd          *Chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth   bool      `yaml:"ssh_pwauth"`
	Packages          []string  `yaml:"packages,omitempty"`
	Output            *Output   `yaml:"output,omitempty"`
}

// Chpasswd configures user password settings.
type Chpasswd struct {
	Expire bool   `yaml:"expire"` // Whether to expire passwords on first login
	List   string `yaml:"list"`   // Format: "username:hash"
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// GenerateUserData renders user-data for the named instance.
//
// Returns the complete user-data file content including the "#cloud-config" header.
func GenerateUserData(name string, cfg *config.CloudInitConfig) (string, error) {
	if !naming.ValidResourceName(name) {
		return "", fmt.Errorf("invalid instance name %q", name)
	}

	// Derive hostname from FQDN or instance name
	hostname := name
	fqdn := name
	if cfg != nil && cfg.FQDN != "" {
		fqdn = cfg.FQDN
		hostname = naming.HostnameFromFQDN(fqdn)
	}

	userData := UserData{
		Hostname:        hostname,
		FQDN:            fqdn,
		SSHPasswordAuth: false,
		Output: &Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
	}

	if cfg != nil {
		if len(cfg.SSHKeys) > 0 {
			userData.SSHAuthorizedKeys = cfg.SSHKeys
		}

		if cfg.RootPasswordHash != "" {
			userData.Chpasswd = &Chpasswd{
				Expire: false,
				List:   fmt.Sprintf("root:%s", cfg.RootPasswordHash),
			}
		}

		if cfg.SSHPwAuth != nil {
			userData.SSHPasswordAuth = *cfg.SSHPwAuth
		}

		if len(cfg.Packages) > 0 {
			userData.Packages = cfg.Packages
		}
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	// Prepend #cloud-config header (required by cloud-init spec)
	return "#cloud-config\n" + string(yamlBytes), nil
}

// WriteUserData renders user-data for name and writes it into dir.
// Returns the path of the written file.
func WriteUserData(dir, name string, cfg *config.CloudInitConfig) (string, error) {
	content, err := GenerateUserData(name, cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create user-data directory: %w", err)
	}

	path := filepath.Join(dir, naming.UserDataFileName(name))
	// 0600: the file may carry a root password hash
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write user-data: %w", err)
	}

	return path, nil
}

// Writer returns a function suitable for executor.Options.UserData that
// writes user-data for each launched instance into cfg.Dir.
func Writer(cfg *config.CloudInitConfig) func(name string) (string, error) {
	return func(name string) (string, error) {
		return WriteUserData(cfg.Dir, name, cfg)
	}
}
