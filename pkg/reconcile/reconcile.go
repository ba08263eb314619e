// Package reconcile infers the directory hierarchy implied by a flat list of
// object keys and decides which folder markers a bucket is missing.
//
// Object stores have no real directories. By convention a key ending in "/"
// is a folder marker and every other key is a file. The functions here are
// pure: they take a listing and return decisions as data, leaving all I/O to
// the caller.
package reconcile

import (
	"sort"
	"strings"
)

// Separator is the hierarchy separator used in object keys.
const Separator = "/"

// Depth returns the number of separators in key.
//
// A marker "a/b/" and a file "a/b/c" both have depth 2. The same count is
// used to order folder creation and to classify applications.
func Depth(key string) int {
	return strings.Count(key, Separator)
}

// IsFolder reports whether key is a folder marker.
func IsFolder(key string) bool {
	return strings.HasSuffix(key, Separator)
}

// Application is a top-level folder marker representing one deployable unit.
type Application struct {
	// Name is the marker key without its trailing separator.
	Name string `json:"name" yaml:"name"`

	// Key is the folder marker key in the bucket (e.g. "app1/").
	Key string `json:"key" yaml:"key"`
}

// Plan is the reconciliation decision for a single listing.
type Plan struct {
	// Keys is the listing the plan was computed from.
	Keys []string `json:"keys" yaml:"keys"`

	// Folders are the missing folder markers, in creation order.
	Folders []string `json:"folders" yaml:"folders"`

	// Applications are the top-level markers present in Keys.
	Applications []Application `json:"applications" yaml:"applications"`
}

// Build computes the missing folders and the applications of one listing.
func Build(keys []string) Plan {
	listing := make([]string, len(keys))
	copy(listing, keys)
	return Plan{
		Keys:         listing,
		Folders:      ComputeMissingFolders(keys),
		Applications: FilterApplications(keys),
	}
}

// ImpliedFolders returns every folder marker implied by keys, at every depth
// from 1 to the deepest key, sorted by ascending depth.
//
// A prefix that coincides with an existing file key is never a folder, even
// when deeper keys imply a marker at that path. Markers already present in
// keys are included; see ComputeMissingFolders for the creation plan.
//
// Examples:
//
//	["a/b/c.txt"]          → ["a/", "a/b/"]
//	["app1/", "app2/sub/"] → ["app1/", "app2/", "app2/sub/"]
//	["a", "a/b.txt"]       → []   ("a" is a file)
func ImpliedFolders(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}

	files := make(map[string]struct{}, len(keys))
	maxDepth := 0
	for _, key := range keys {
		if !IsFolder(key) {
			files[key] = struct{}{}
		}
		if d := Depth(key); d > maxDepth {
			maxDepth = d
		}
	}

	seen := make(map[string]struct{})
	var folders []string
	for depth := 1; depth <= maxDepth; depth++ {
		for _, key := range keys {
			prefix := prefixPath(key, depth)
			if prefix == "" {
				continue
			}
			if _, isFile := files[prefix]; isFile {
				continue
			}
			folder := prefix + Separator
			if _, dup := seen[folder]; dup {
				continue
			}
			seen[folder] = struct{}{}
			folders = append(folders, folder)
		}
	}

	sortByDepth(folders)
	return folders
}

// ComputeMissingFolders returns the folder markers implied by keys that are
// not already present in keys, in creation order (ascending depth, then
// lexicographic).
//
// The result is a fixed point: feeding keys plus the result back in yields
// an empty plan.
func ComputeMissingFolders(keys []string) []string {
	implied := ImpliedFolders(keys)
	if len(implied) == 0 {
		return []string{}
	}

	present := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		present[key] = struct{}{}
	}

	missing := make([]string, 0, len(implied))
	for _, folder := range implied {
		if _, ok := present[folder]; ok {
			continue
		}
		missing = append(missing, folder)
	}
	return missing
}

// FilterApplications selects top-level folder markers: keys that end with
// the separator, contain exactly one, and have a non-empty name. Order of
// first appearance is preserved and duplicates are dropped.
func FilterApplications(keys []string) []Application {
	apps := []Application{}
	seen := make(map[string]struct{})
	for _, key := range keys {
		if key == "" || !IsFolder(key) || Depth(key) != 1 {
			continue
		}
		name := strings.TrimSuffix(key, Separator)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		apps = append(apps, Application{
			Name: name,
			Key:  key,
		})
	}
	return apps
}

// prefixPath joins the first depth segments of key.
//
// Trailing separators are dropped before splitting, so the marker "a/b/"
// has the segments "a" and "b". Keys with fewer segments than depth are
// returned whole.
func prefixPath(key string, depth int) string {
	trimmed := strings.TrimRight(key, Separator)
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, Separator)
	if depth < len(segments) {
		segments = segments[:depth]
	}
	return strings.Join(segments, Separator)
}

// sortByDepth orders folders by separator count; equal depths sort
// lexicographically so plans are deterministic.
func sortByDepth(folders []string) {
	sort.SliceStable(folders, func(i, j int) bool {
		di, dj := Depth(folders[i]), Depth(folders[j])
		if di != dj {
			return di < dj
		}
		return folders[i] < folders[j]
	})
}
