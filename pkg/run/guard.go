package run

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard confines file operations to a single root directory. Step and
// artifact paths are assembled from caller-supplied identifiers, so every
// write goes through a traversal check before touching the filesystem.
type Guard struct {
	root string
}

// NewGuard creates a guard for the given root. The root is made absolute
// so later comparisons are not fooled by working-directory changes.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("guard root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guard root: %w", err)
	}
	return &Guard{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory.
func (g *Guard) Root() string {
	return g.root
}

// Resolve joins a relative path onto the root and verifies the cleaned
// result is still inside it. Absolute paths and traversal sequences that
// escape the root are rejected.
func (g *Guard) Resolve(relative string) (string, error) {
	if relative == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(relative) {
		return "", fmt.Errorf("path %q must be relative", relative)
	}

	dest := filepath.Clean(filepath.Join(g.root, relative))
	if !g.contains(dest) {
		return "", fmt.Errorf("path %q escapes the run directory", relative)
	}
	return dest, nil
}

func (g *Guard) contains(abs string) bool {
	if abs == g.root {
		return true
	}
	return strings.HasPrefix(abs, g.root+string(filepath.Separator))
}
