package treewatch

import "strings"

// normalizeRootPath strips a trailing "/" unless path is exactly "/".
func normalizeRootPath(path string) string {
	if path == "/" {
		return path
	}
	return strings.TrimSuffix(path, "/")
}

// joinChild builds the absolute path of a directory entry, special-casing
// root "/" to avoid the double slash the original C implementation
// produced via mk_string(&abs, "/%s", path, name) (spec §9, Open Questions).
func joinChild(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
