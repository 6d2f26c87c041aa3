package archive

import (
	"path/filepath"
	"slices"
	"strings"
)

// TopLevel returns the distinct first path components of relative dirs in
// input order. Absolute directories are kept whole. Archiving "OUTPUT"
// covers both "OUTPUT/CHAI" and "OUTPUT/BOLTZ".
func TopLevel(dirs []string) []string {
	var out []string
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if clean == "." || clean == "" {
			continue
		}
		top := clean
		if !filepath.IsAbs(clean) {
			top = strings.SplitN(filepath.ToSlash(clean), "/", 2)[0]
		}
		if top == ".." || slices.Contains(out, top) {
			continue
		}
		out = append(out, top)
	}
	return out
}
