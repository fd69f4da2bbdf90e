package models

import "time"

// FileNode kinds.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// FileNode is one entry in the per-user file forest. ParentID nil means the
// node sits at the root. Invariants:
//  1. no node is its own ancestor
//  2. no two siblings under the same parent share a name
//  3. a file always has a non-empty StoragePath; a folder never does
type FileNode struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	MimeType    *string   `json:"mime_type,omitempty"`
	SizeBytes   *int64    `json:"size_bytes,omitempty"`
	ParentID    *string   `json:"parent_id"`
	StoragePath *string   `json:"storage_path,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsFolder reports whether the node is a folder.
func (n *FileNode) IsFolder() bool { return n.Kind == KindFolder }
