// Package pathresolve implements the path resolver of spec.md §4.10:
// turning an `<import>`/`<inject>` path argument into an absolute,
// symlink-resolved `.ox` file path that is provably contained within the
// project's base directory (relative paths) or a package's source
// directory (package paths).
package pathresolve

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/the-ox-studio/oxdef-sub002/pkg/config"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

const packageManifestName = "ox.config.json"
const defaultPackageSource = "ox"

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

var reservedAliases = map[string]bool{
	"default": true,
	"this":    true,
	"parent":  true,
}

// Resolver resolves import/inject path arguments against a project
// configuration.
type Resolver struct {
	cfg *config.Config
}

func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve turns rawPath (the string argument of an <import>/<inject>
// directive) into an absolute, symlink-resolved, `.ox`-suffixed path,
// given the absolute path of the file that referenced it.
func (r *Resolver) Resolve(rawPath, fromFile string, loc token.Location) (string, *oxerrors.Error) {
	if err := r.checkRawPath(rawPath, loc); err != nil {
		return "", err
	}
	if strings.HasPrefix(rawPath, "./") || strings.HasPrefix(rawPath, "../") {
		return r.resolveRelative(rawPath, fromFile, loc)
	}
	return r.resolvePackage(rawPath, loc)
}

func (r *Resolver) checkRawPath(rawPath string, loc token.Location) *oxerrors.Error {
	if strings.IndexByte(rawPath, 0) >= 0 {
		return oxerrors.New(oxerrors.PathTraversalError, loc, "import path contains a null byte")
	}
	limit := r.cfg.Resources.MaxPathLength
	if limit <= 0 {
		limit = config.DefaultMaxPathLength
	}
	if len(rawPath) > limit {
		return oxerrors.New(oxerrors.PathTraversalError, loc, "import path exceeds %d bytes", limit)
	}
	if rawPath == "" {
		return oxerrors.New(oxerrors.PathTraversalError, loc, "import path is empty")
	}
	return nil
}

// resolveRelative resolves a ./ or ../ path against fromFile's directory,
// requiring both the pre- and post-symlink-resolved forms to stay within
// the project base directory.
func (r *Resolver) resolveRelative(rawPath, fromFile string, loc token.Location) (string, *oxerrors.Error) {
	joined := filepath.Join(filepath.Dir(fromFile), rawPath)
	joined = ensureOxExtension(joined)

	base, err := filepath.Abs(r.cfg.BaseDir)
	if err != nil {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc, "cannot resolve project base directory: %v", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc, "cannot resolve import path: %v", err)
	}
	if !withinDir(base, absJoined) {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc,
			"import path %q escapes project base directory before symlink resolution", rawPath)
	}

	resolvedBase, err := canonicalDir(base)
	if err != nil {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc, "cannot canonicalize project base directory: %v", err)
	}
	resolved, rerr := canonicalPath(absJoined)
	if rerr != nil {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc, "cannot canonicalize import path: %v", rerr)
	}
	if !withinDir(resolvedBase, resolved) {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc,
			"import path %q escapes project base directory after symlink resolution", rawPath)
	}
	return resolved, nil
}

// resolvePackage searches the configured module directories for a package
// root containing rawPath, honoring an optional ox.config.json "source"
// subdirectory.
func (r *Resolver) resolvePackage(rawPath string, loc token.Location) (string, *oxerrors.Error) {
	moduleDirs := r.cfg.Behavior.ModuleDirectories
	if len(moduleDirs) == 0 {
		moduleDirs = []string{"node_modules"}
	}
	base, err := filepath.Abs(r.cfg.BaseDir)
	if err != nil {
		return "", oxerrors.New(oxerrors.PathTraversalError, loc, "cannot resolve project base directory: %v", err)
	}

	pkgName, rest := splitPackagePath(rawPath)
	var lastErr *oxerrors.Error
	for _, dir := range moduleDirs {
		pkgRoot := filepath.Join(base, dir, pkgName)
		if _, statErr := os.Stat(pkgRoot); statErr != nil {
			continue
		}
		sourceDir := defaultPackageSource
		if src, ok := readPackageSource(pkgRoot); ok {
			sourceDir = src
		}
		sourceRoot := filepath.Join(pkgRoot, sourceDir)
		candidate := ensureOxExtension(filepath.Join(sourceRoot, rest))

		resolvedSourceRoot, cerr := canonicalDir(sourceRoot)
		if cerr != nil {
			lastErr = oxerrors.New(oxerrors.FileNotFound, loc, "package %q has no readable source directory: %v", pkgName, cerr)
			continue
		}
		resolvedCandidate, cerr := canonicalPath(candidate)
		if cerr != nil {
			lastErr = oxerrors.New(oxerrors.FileNotFound, loc, "cannot canonicalize package import %q: %v", rawPath, cerr)
			continue
		}
		if !withinDir(resolvedSourceRoot, resolvedCandidate) {
			lastErr = oxerrors.New(oxerrors.PathTraversalError, loc,
				"package import %q escapes its package source directory after symlink resolution", rawPath)
			continue
		}
		return resolvedCandidate, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", oxerrors.New(oxerrors.FileNotFound, loc, "package %q not found in any module directory", pkgName)
}

// splitPackagePath separates a package import path into its root package
// segment (the first path component, with a leading @scope/ folded into
// that first segment) and the remaining relative path within it.
func splitPackagePath(rawPath string) (pkgName, rest string) {
	trimmed := strings.TrimPrefix(rawPath, "@")
	parts := strings.SplitN(trimmed, "/", 2)
	if strings.HasPrefix(rawPath, "@") {
		if len(parts) == 2 {
			scopeAndName := strings.SplitN(parts[1], "/", 2)
			if len(scopeAndName) == 2 {
				return "@" + parts[0] + "/" + scopeAndName[0], scopeAndName[1]
			}
			return "@" + parts[0] + "/" + parts[1], ""
		}
		return "@" + parts[0], ""
	}
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

type packageManifest struct {
	Source string `json:"source"`
}

func readPackageSource(pkgRoot string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(pkgRoot, packageManifestName))
	if err != nil {
		return "", false
	}
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil || manifest.Source == "" {
		return "", false
	}
	return manifest.Source, true
}

func ensureOxExtension(path string) string {
	if strings.HasSuffix(path, ".ox") {
		return path
	}
	return path + ".ox"
}

// withinDir reports whether candidate is dir itself or lies beneath it.
func withinDir(dir, candidate string) bool {
	rel, err := filepath.Rel(dir, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}

// canonicalDir resolves dir's symlinks, tolerating a directory that does
// not exist yet (package/base directories are expected to exist, but we
// degrade to the absolute path rather than failing containment checks
// outright on a platform where EvalSymlinks is unavailable).
func canonicalDir(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return dir, nil
	}
	return resolved, nil
}

// canonicalPath resolves path's symlinks when the file exists; a
// not-yet-created target (common for `inject`-ed scratch files in tests)
// falls back to resolving its parent directory instead.
func canonicalPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	parent, perr := filepath.EvalSymlinks(filepath.Dir(path))
	if perr != nil {
		return path, nil
	}
	return filepath.Join(parent, filepath.Base(path)), nil
}

// ValidateAlias checks an `as <alias>` identifier against spec.md §4.10's
// constraints: identifier syntax, 50-char max length, and the reserved
// words default/this/parent.
func ValidateAlias(alias string, maxLen int, loc token.Location) *oxerrors.Error {
	if maxLen <= 0 {
		maxLen = config.DefaultMaxAliasLength
	}
	if !aliasPattern.MatchString(alias) {
		return oxerrors.New(oxerrors.InvalidImportAlias, loc, "alias %q is not a valid identifier", alias)
	}
	if len(alias) > maxLen {
		return oxerrors.New(oxerrors.InvalidImportAlias, loc, "alias %q exceeds %d characters", alias, maxLen)
	}
	if reservedAliases[alias] {
		return oxerrors.New(oxerrors.InvalidImportAlias, loc, "alias %q is a reserved identifier", alias)
	}
	return nil
}
