package recipe

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Key of the dependency list shared by all targets.
const allImages = "all"

// Dependency lists split into a list shared by every target and lists for
// individual target images.
type Dependencies struct {
	All      []string            // Shared by every target.
	PerImage map[string][]string // Keyed by target image.
}

// Returns the union of the shared list and the image's own list, sorted and
// without duplicates.
func (d Dependencies) For(image string) []string {
	deps := make([]string, 0, len(d.All)+len(d.PerImage[image]))
	deps = append(deps, d.All...)
	deps = append(deps, d.PerImage[image]...)
	slices.Sort(deps)
	return slices.Compact(deps)
}

// Returns the image keys with their own lists, sorted.
func (d Dependencies) Images() []string {
	return slices.Sorted(maps.Keys(d.PerImage))
}

// Reports whether no dependencies are declared.
func (d Dependencies) Empty() bool {
	return len(d.All) == 0 && len(d.PerImage) == 0
}

// Accepts either a list, shared by every target, or an object whose "all"
// key holds the shared list and whose other keys are target images.
func (d *Dependencies) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*d = Dependencies{All: list}
		return nil
	}

	var byImage map[string][]string
	if err := json.Unmarshal(b, &byImage); err != nil {
		return fmt.Errorf("dependencies must be a list or a map of lists: %w", err)
	}

	*d = Dependencies{All: byImage[allImages]}
	delete(byImage, allImages)
	if len(byImage) > 0 {
		d.PerImage = byImage
	}
	return nil
}
