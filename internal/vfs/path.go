package vfs

import "strings"

// Resolve normalizes p into a canonical absolute path: relative paths are
// joined to cwd, "." and ".." components collapse, empty components and
// trailing slashes drop, and the result always begins with "/". Pure
// string work; the filesystem is never consulted.
func Resolve(cwd, p string) string {
	if !strings.HasPrefix(p, "/") {
		p = cwd + "/" + p
	}

	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return "/" + strings.Join(stack, "/")
}

// SplitPath splits an already-resolved path into its parent directory and
// final name. The root splits into ("/", "").
func SplitPath(p string) (dir, name string) {
	if p == "/" {
		return "/", ""
	}
	i := strings.LastIndex(p, "/")
	dir = p[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, p[i+1:]
}

// joinPath appends name to an already-resolved directory path.
func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// validName rejects names that cannot live in the files table: empty, path
// separators, the "." / ".." traversal components, and the reserved cell
// separator.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/:")
}
