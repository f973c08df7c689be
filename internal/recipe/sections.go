package recipe

import (
	"encoding/json"
	"fmt"
)

// Git repository cloned into the build directory.
type GitSource struct {
	URL    string `json:"url"`              // Repository URL.
	Branch string `json:"branch,omitempty"` // Branch or tag; empty uses the remote's default.
}

// Accepts either a URL string or an object with url and branch.
func (g *GitSource) UnmarshalJSON(b []byte) error {
	var url string
	if err := json.Unmarshal(b, &url); err == nil {
		*g = GitSource{URL: url}
		return nil
	}

	type plain GitSource
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("git must be a URL or an object with url and branch: %w", err)
	}
	*g = GitSource(p)
	return nil
}

// Fields only used by Debian packages.
type DebInfo struct {
	Priority string `json:"priority,omitempty"`
}

// Fields only used by RPM packages.
type RPMInfo struct {
	Release         string       `json:"release,omitempty"`
	Epoch           string       `json:"epoch,omitempty"`
	Vendor          string       `json:"vendor,omitempty"`
	Icon            string       `json:"icon,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	Obsoletes       Dependencies `json:"obsoletes,omitempty"`
	PreScript       string       `json:"pre_script,omitempty"`
	PostScript      string       `json:"post_script,omitempty"`
	PreunScript     string       `json:"preun_script,omitempty"`
	PostunScript    string       `json:"postun_script,omitempty"`
	ConfigNoreplace string       `json:"config_noreplace,omitempty"`
}
