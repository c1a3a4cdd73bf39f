package file

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandUser replaces a leading ~ or ~name with the matching home directory.
// Paths that cannot be resolved are returned unchanged.
func ExpandUser(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	slashIndex := strings.Index(path, "/")
	if slashIndex == -1 {
		slashIndex = len(path)
	}

	var homedir string
	if name := path[1:slashIndex]; name == "" {
		homedir, _ = os.UserHomeDir()
	} else if u, err := user.Lookup(name); err == nil {
		homedir = u.HomeDir
	}
	if homedir == "" {
		return path
	}
	return filepath.Join(homedir, path[slashIndex:])
}

// Resolve expands ~ and cleans the path. Empty input stays empty.
func Resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Clean(ExpandUser(path))
}
