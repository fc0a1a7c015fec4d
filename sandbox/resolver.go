// Package sandbox confines caller-supplied paths to a single workspace root.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ViolationMessage is reported for every rejected path. It is constant so a
// rejection never reveals anything about the filesystem outside the root.
const ViolationMessage = "Path outside workspace not allowed"

var ErrOutsideWorkspace = errors.New(ViolationMessage)

// maxLinkDepth bounds symlink chains followed when resolving a path that
// does not fully exist.
const maxLinkDepth = 40

// aliasPrefixes are stripped verbatim from the front of a request path.
var aliasPrefixes = []string{"workspace/", "/workspace/"}

// Violation is returned when a requested path escapes the workspace root.
type Violation struct {
	Path string
}

func (v *Violation) Error() string {
	return ViolationMessage
}

func (v *Violation) Is(target error) bool {
	return target == ErrOutsideWorkspace
}

// Resolver maps workspace-relative paths to absolute paths under Root.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	root string
}

// NewResolver canonicalizes root once. Symlinks in the root itself are
// evaluated when the directory exists so that the prefix test compares
// like with like.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	abs = filepath.Clean(abs)

	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	return &Resolver{root: abs}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the absolute path for rel, or a *Violation if the
// canonical result lies outside the workspace. The empty string denotes
// the root itself.
func (r *Resolver) Resolve(rel string) (string, error) {
	cleaned := stripAlias(rel)

	// Join cleans the result, so ".." segments are collapsed before the
	// containment check runs.
	full := filepath.Join(r.root, filepath.FromSlash(cleaned))

	if !r.contains(full) {
		return "", &Violation{Path: rel}
	}
	return full, nil
}

// ResolveReal is Resolve followed by symlink evaluation. A link inside the
// workspace that points outside of it is reported as a violation, whether
// or not its target exists. Other filesystem errors (such as a missing
// file inside the workspace) are returned unchanged.
func (r *Resolver) ResolveReal(rel string) (string, error) {
	full, err := r.Resolve(rel)
	if err != nil {
		return "", err
	}

	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		if !r.contains(canonicalize(full, 0)) {
			return "", &Violation{Path: rel}
		}
		return "", err
	}
	if !r.contains(real) {
		return "", &Violation{Path: rel}
	}
	return real, nil
}

// Rel returns the workspace-relative form of an absolute path inside the
// root, using forward slashes. Paths outside the root are returned as-is.
func (r *Resolver) Rel(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || !r.contains(abs) {
		return abs
	}
	return filepath.ToSlash(rel)
}

// canonicalize evaluates symlinks in the longest existing prefix of path
// and follows a dangling link in the first missing component, so the
// result says where path would live if it existed.
func canonicalize(path string, depth int) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}

	dir := canonicalize(parent, depth)
	candidate := filepath.Join(dir, filepath.Base(path))
	if depth >= maxLinkDepth {
		return candidate
	}
	target, err := os.Readlink(candidate)
	if err != nil {
		return candidate
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return canonicalize(target, depth+1)
}

func (r *Resolver) contains(path string) bool {
	if path == r.root {
		return true
	}
	prefix := r.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

func stripAlias(rel string) string {
	for _, prefix := range aliasPrefixes {
		if strings.HasPrefix(rel, prefix) {
			return rel[len(prefix):]
		}
	}
	return rel
}
