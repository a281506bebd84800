//go:build !unix

package chromium

// isRoot is only relevant where Chromium refuses to sandbox the superuser.
func isRoot() bool {
	return false
}
