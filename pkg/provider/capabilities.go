package provider

import "context"

// Optional provider capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The core
// Provider interface remains intentionally small.

// ACLPrivate is the canned ACL applied to folder markers.
const ACLPrivate = "private"

// BucketChecker can report whether the configured bucket exists.
type BucketChecker interface {
	BucketExists(ctx context.Context) (bool, error)
}

// FolderMarkerPutter can write a private zero-byte folder marker.
type FolderMarkerPutter interface {
	PutFolderMarker(ctx context.Context, key string) error
}
