package kv

import (
	"path"
	"strings"
)

// NormalizeKey maps a decoded request path to a store key. Repeated slashes
// collapse, dot segments resolve, and trailing slashes are dropped, so
// "/foo/bar/", "/foo/bar" and "//foo//bar" share one key. Root stays "/".
func NormalizeKey(rawPath string) string {
	if rawPath == "" {
		return "/"
	}
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}
	return path.Clean(rawPath)
}
