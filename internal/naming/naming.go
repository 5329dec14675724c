// Package naming provides the naming rules for multipass instances and the
// artifacts derived from an instance name, such as cloud-init user-data
// files and task labels.
//
// These rules are shared by the command classifier, the executor and the
// cloud-init generator so that all of them agree on what a valid name is.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

var resourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidResourceName reports whether name only uses letters, digits, hyphens
// and underscores.
//
// Example: "web-1" is valid, "web 1" and "web;1" are not.
func ValidResourceName(name string) bool {
	return resourceNamePattern.MatchString(name)
}

// UserDataFileName returns the cloud-init user-data file name for an instance.
// Format: {name}-cloud-init.yaml
func UserDataFileName(name string) string {
	return fmt.Sprintf("%s-cloud-init.yaml", name)
}

// TaskName returns the label used for a background task.
// Format: {operation}/{name} (e.g., "launch/web1")
func TaskName(operation, name string) string {
	return fmt.Sprintf("%s/%s", operation, name)
}

// HostnameFromFQDN returns everything before the first dot.
//
// Example: "web1.lab.example.com" → "web1"
func HostnameFromFQDN(fqdn string) string {
	return strings.SplitN(fqdn, ".", 2)[0]
}
