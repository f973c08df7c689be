package runtime

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Package manager families keyed by OS family.
var osPackageManagers = map[string]string{
	"debian":   "apt",
	"ubuntu":   "apt",
	"mint":     "apt",
	"raspbian": "apt",
	"centos":   "rpm",
	"rhel":     "rpm",
	"rocky":    "rpm",
	"alma":     "rpm",
	"fedora":   "rpm",
	"oracle":   "rpm",
	"amazon":   "rpm",
	"arch":     "pacman",
	"manjaro":  "pacman",
	"alpine":   "apk",
	"suse":     "zypper",
}

// Returns the shell command that installs deps on the given OS family.
//
// Every dependency is single-quoted. Returns an error wrapping
// [ErrUnsupportedOS] when the family has no known package manager.
func installCommand(family string, deps []string) (string, error) {
	quoted := make([]string, len(deps))
	for i, d := range deps {
		quoted[i] = shellQuote(d)
	}
	list := strings.Join(quoted, " ")

	switch osPackageManagers[family] {
	case "apt":
		return "export DEBIAN_FRONTEND=noninteractive && apt-get update && apt-get install -y --no-install-recommends " + list, nil
	case "rpm":
		return "if command -v dnf >/dev/null 2>&1; then dnf install -y " + list + "; else yum install -y " + list + "; fi", nil
	case "pacman":
		return "pacman -Sy --noconfirm --needed " + list, nil
	case "apk":
		return "apk add --no-cache " + list, nil
	case "zypper":
		return "zypper --non-interactive install " + list, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOS, family)
	}
}

// Installs build dependencies with the image's package manager.
//
// Does nothing when deps is empty.
func (c *Container) installDeps(ctx context.Context, family string, deps []string) error {
	if len(deps) == 0 {
		return nil
	}

	cmd, err := installCommand(family, deps)
	if err != nil {
		return err
	}

	slog.Info("installing build dependencies", "id", c.id, "deps", deps)

	var output bytes.Buffer
	w := &lockedWriter{w: &output}
	code, err := c.execCommand(ctx, nil, w, w, c.baseEnv(), "/", "/bin/sh", "-c", cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("dependency installation failed with exit code %d: %s", code, tail(output.String(), 2048))
	}
	return nil
}

// Quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Returns at most the last n bytes of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
