package fingerprint

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// VersionFile is the manifest consulted first for the declared version.
const VersionFile = "VERSION"

// PackageManifest is consulted when no VERSION file exists.
const PackageManifest = "package.json"

// Tree computes the fingerprint of the input tree rooted at root, folding
// declaredVersion into the digest so a version bump changes the fingerprint
// even when content is byte-identical.
//
// The walk is deterministic: regular files are hashed in sorted relative-path
// order with slash-separated paths, so the same tree produces the same
// fingerprint on any machine or filesystem. Non-regular files (symlinks,
// sockets, devices) are skipped.
func Tree(root, declaredVersion string) (types.Fingerprint, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Fingerprint{}, errdefs.New(errdefs.CodeInputNotFound, root, "input tree does not exist")
		}
		return types.Fingerprint{}, errdefs.Wrap(errdefs.CodeInputNotFound, root, err)
	}
	if !info.IsDir() {
		return types.Fingerprint{}, errdefs.New(errdefs.CodeInputNotFound, root, "input path is not a directory")
	}

	files, err := collectFiles(root)
	if err != nil {
		return types.Fingerprint{}, err
	}

	digester := digest.Canonical.Digester()
	hash := digester.Hash()
	for _, rel := range files {
		fileDigest, err := File(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return types.Fingerprint{}, err
		}
		// Each record is path NUL digest NUL. Paths cannot contain NUL and
		// digests are fixed-width, so no two distinct trees share an
		// encoding and a rename is always distinguishable from an edit.
		fmt.Fprintf(hash, "%s\x00%s\x00", rel, fileDigest)
	}
	fmt.Fprintf(hash, "version\x00%s", declaredVersion)

	return types.Fingerprint{
		Algorithm: digest.Canonical.String(),
		Hex:       digester.Digest().Encoded(),
		Version:   declaredVersion,
	}, nil
}

// Compute reads the declared version from the tree's own manifest and
// fingerprints the tree with it.
func Compute(root string) (types.Fingerprint, error) {
	version, err := ReadDeclaredVersion(root)
	if err != nil {
		return types.Fingerprint{}, err
	}
	return Tree(root, version)
}

// ReadDeclaredVersion returns the version the tree's authors declared. A
// plain VERSION file wins; otherwise the "version" field of package.json is
// used. A tree declaring neither fails with InputNotFound.
func ReadDeclaredVersion(root string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(root, VersionFile))
	if err == nil {
		v := strings.TrimSpace(string(raw))
		if v != "" {
			return v, nil
		}
	}

	raw, err = os.ReadFile(filepath.Join(root, PackageManifest))
	if err != nil {
		return "", errdefs.New(errdefs.CodeInputNotFound, root, "no VERSION file or package.json declares a version")
	}
	var manifest struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return "", errdefs.Wrap(errdefs.CodeInputNotFound, filepath.Join(root, PackageManifest), err)
	}
	if manifest.Version == "" {
		return "", errdefs.New(errdefs.CodeInputNotFound, root, "package.json declares no version")
	}
	return manifest.Version, nil
}

// File computes the content digest of a single file. Used for per-object
// change detection when synchronizing bundles.
func File(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errdefs.New(errdefs.CodeInputNotFound, path, "file does not exist")
		}
		return "", errdefs.Wrap(errdefs.CodeInputNotFound, path, err)
	}
	defer f.Close()

	dgst, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", errdefs.Wrap(errdefs.CodeInputNotFound, path, err)
	}
	return dgst, nil
}

// collectFiles walks root and returns slash-separated relative paths of all
// regular files in sorted order. VCS metadata directories are skipped so a
// checkout fingerprints by its tracked content, not its commit history.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return fs.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeInputNotFound, root, err)
	}
	sort.Strings(files)
	return files, nil
}
