package runtime

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
)

// Registry name containerd uses for Docker Hub.
const dockerHub = "docker.io"

// Returns the fully qualified form of an image reference.
//
// Short names are expanded the way the Docker CLI does it: "debian:10"
// becomes "docker.io/library/debian:10" and a missing tag becomes
// "latest". Digest references keep their digest.
func normalizeReference(ref string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidReference, ref, err)
	}

	repo := parsed.Context()
	registry := repo.RegistryStr()
	if registry == name.DefaultRegistry {
		registry = dockerHub
	}

	sep := ":"
	if _, ok := parsed.(name.Digest); ok {
		sep = "@"
	}

	return registry + "/" + repo.RepositoryStr() + sep + parsed.Identifier(), nil
}
