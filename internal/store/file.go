package store

import (
	"sort"
	"sync"

	"drivechat/internal/domain/models"
)

// RootKey is the cache key for listings at the forest root (parent id null).
const RootKey = "root"

// FileStore caches per-folder listings and node metadata. Entries have no
// TTL: invalidation is mutation-driven, never time-driven. Listings keep
// the presentation order folders-before-files, then name ascending.
// Safe for concurrent use.
type FileStore struct {
	mu       sync.Mutex
	listings map[string][]models.FileNode // folder id (or RootKey) -> children
	meta     map[string]models.FileNode   // node id -> snapshot, for ancestor walks
}

// NewFileStore creates an empty file store.
func NewFileStore() *FileStore {
	return &FileStore{
		listings: make(map[string][]models.FileNode),
		meta:     make(map[string]models.FileNode),
	}
}

// key normalizes a parent pointer to a cache key.
func key(parentID *string) string {
	if parentID == nil {
		return RootKey
	}
	return *parentID
}

// Listing returns a copy of the cached children of a folder, or false on a
// miss.
func (s *FileStore) Listing(parentID *string) ([]models.FileNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, ok := s.listings[key(parentID)]
	if !ok {
		return nil, false
	}
	out := make([]models.FileNode, len(nodes))
	copy(out, nodes)
	return out, true
}

// PutListing fully replaces one folder's cached listing with the remote
// authoritative state, re-establishing the listing order.
func (s *FileStore) PutListing(parentID *string, nodes []models.FileNode) {
	list := make([]models.FileNode, len(nodes))
	copy(list, nodes)
	sortListing(list)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[key(parentID)] = list
	for _, n := range list {
		s.meta[n.ID] = n
	}
}

// Insert adds a node to its parent's cached listing, if that listing is
// cached. A node with the same id is merge-replaced rather than duplicated.
func (s *FileStore) Insert(node models.FileNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta[node.ID] = node
	k := key(node.ParentID)
	list, ok := s.listings[k]
	if !ok {
		return
	}
	replaced := false
	for i := range list {
		if list[i].ID == node.ID {
			list[i] = node
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, node)
	}
	sortListing(list)
	s.listings[k] = list
}

// Node returns a cached node snapshot, or false on a miss.
func (s *FileStore) Node(id string) (models.FileNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.meta[id]
	return n, ok
}

// PutNode caches a node snapshot without touching listings.
func (s *FileStore) PutNode(node models.FileNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[node.ID] = node
}

// Invalidate drops every cache entry touched by a mutation of the given
// node: its metadata and any cached listing containing it.
func (s *FileStore) Invalidate(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.meta, nodeID)
	for k, list := range s.listings {
		for _, n := range list {
			if n.ID == nodeID {
				delete(s.listings, k)
				break
			}
		}
	}
}

// InvalidateListing drops one folder's cached listing.
func (s *FileStore) InvalidateListing(parentID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listings, key(parentID))
}

// Clear drops everything.
func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = make(map[string][]models.FileNode)
	s.meta = make(map[string]models.FileNode)
}

// sortListing establishes the listing order: folders before files, then
// name ascending.
func sortListing(list []models.FileNode) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsFolder() != list[j].IsFolder() {
			return list[i].IsFolder()
		}
		return list[i].Name < list[j].Name
	})
}
