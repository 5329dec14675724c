package command

import (
	"regexp"
	"strings"
)

// DefaultRelease is inserted into launch commands that name no image.
const DefaultRelease = "22.04"

var releaseVersion = regexp.MustCompile(`^(?:ubuntu[-:])?(\d\d\.\d\d)$`)

var releaseCodenames = map[string]string{
	"focal": "20.04",
	"jammy": "22.04",
	"noble": "24.04",
	"lts":   "24.04",
}

// CanonicalRelease maps an accepted release spelling to its short form
// ("ubuntu-22.04", "jammy" and "22.04" all become "22.04").
func CanonicalRelease(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := releaseVersion.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "ubuntu:"), "ubuntu-")
	if r, ok := releaseCodenames[s]; ok {
		return r, true
	}
	return "", false
}
