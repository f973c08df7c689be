package runtime

import (
	"errors"
	"strings"
	"testing"

	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

func TestNormalizeReference(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"debian", "docker.io/library/debian:latest"},
		{"debian:10", "docker.io/library/debian:10"},
		{"centos:8", "docker.io/library/centos:8"},
		{"rockylinux/rockylinux:9", "docker.io/rockylinux/rockylinux:9"},
		{"index.docker.io/library/alpine:3.19", "docker.io/library/alpine:3.19"},
		{"quay.io/centos/centos:stream9", "quay.io/centos/centos:stream9"},
		{"localhost:5000/build/debian:12", "localhost:5000/build/debian:12"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := normalizeReference(tt.ref)
			if err != nil {
				t.Fatalf("normalizeReference(%q): %v", tt.ref, err)
			}
			if got != tt.want {
				t.Fatalf("normalizeReference(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestNormalizeReferenceDigest(t *testing.T) {
	ref := "debian@sha256:" + strings.Repeat("a", 64)
	got, err := normalizeReference(ref)
	if err != nil {
		t.Fatal(err)
	}
	if want := "docker.io/library/" + ref; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeReferenceInvalid(t *testing.T) {
	_, err := normalizeReference("Not A Reference")
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}
}

func TestReference(t *testing.T) {
	rt := &Runtime{images: map[string]string{
		"rocky9": "rockylinux/rockylinux:9",
	}}

	tests := []struct {
		image string
		want  string
	}{
		{"rocky9", "docker.io/rockylinux/rockylinux:9"},
		{"debian10", "docker.io/library/debian:10"},
		{"centos8", "docker.io/library/centos:8"},
		{"ubuntu:22.04", "docker.io/library/ubuntu:22.04"},
		{"alpine", "docker.io/library/alpine:latest"},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			got, err := rt.reference(recipe.NewTarget(tt.image))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("reference(%q) = %q, want %q", tt.image, got, tt.want)
			}
		})
	}
}

func TestContainerID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"pkg-debian10-1", "pkg-debian10-1"},
		{"pkg-ubuntu:22.04-1", "pkg-ubuntu-22.04-1"},
		{"pkg-quay.io/centos-x", "pkg-quay.io-centos-x"},
		{"a_b.c", "a_b.c"},
	}

	for _, tt := range tests {
		if got := containerID(tt.id); got != tt.want {
			t.Errorf("containerID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestInstallCommand(t *testing.T) {
	tests := []struct {
		family string
		prefix string
	}{
		{"debian", "export DEBIAN_FRONTEND=noninteractive && apt-get update"},
		{"ubuntu", "export DEBIAN_FRONTEND=noninteractive && apt-get update"},
		{"centos", "if command -v dnf"},
		{"rocky", "if command -v dnf"},
		{"arch", "pacman -Sy"},
		{"alpine", "apk add"},
		{"suse", "zypper"},
	}

	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			cmd, err := installCommand(tt.family, []string{"gcc", "make"})
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(cmd, tt.prefix) {
				t.Fatalf("command %q does not start with %q", cmd, tt.prefix)
			}
			if !strings.Contains(cmd, "'gcc' 'make'") {
				t.Fatalf("command %q does not list quoted deps", cmd)
			}
		})
	}
}

func TestInstallCommandUnsupported(t *testing.T) {
	_, err := installCommand("plan9", []string{"gcc"})
	if !errors.Is(err, ErrUnsupportedOS) {
		t.Fatalf("err = %v, want ErrUnsupportedOS", err)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("shellQuote = %q", got)
	}
}

func TestLookupEnv(t *testing.T) {
	env := []string{"HOME=/root", "PATH=/usr/bin:/bin"}
	if got := lookupEnv(env, "PATH"); got != "/usr/bin:/bin" {
		t.Fatalf("PATH = %q", got)
	}
	if got := lookupEnv(env, "MISSING"); got != "" {
		t.Fatalf("MISSING = %q", got)
	}
}
