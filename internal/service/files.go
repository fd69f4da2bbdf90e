// Package service implements the file tree operations on top of the remote
// table store, the object store, and the local listing cache. Structural
// mutations are remote-first: the cache is only touched after the remote
// write is confirmed.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"drivechat/internal/blobstore"
	"drivechat/internal/config"
	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
	"drivechat/internal/store"
)

const (
	searchLimit = 50
	recentLimit = 20
)

// IngestTrigger notifies the document pipeline about a newly stored file.
// Failures are logged, never surfaced to the uploader.
type IngestTrigger interface {
	TriggerIngest(ctx context.Context, token, storagePath, fileName string) error
}

// UploadRequest carries one file upload.
type UploadRequest struct {
	Name     string
	MimeType string
	ParentID *string
	Data     []byte
}

// MoveRequest is a rename and/or reparent. NewParent uses the tri-state:
// absent means keep the current parent, present-nil means move to root.
type MoveRequest struct {
	NewName   *string
	NewParent ParentField
}

// ParentField distinguishes "field absent" from "field null" in a move.
type ParentField struct {
	Present bool
	Value   *string
}

// FileService owns the file tree operations.
type FileService struct {
	fileRepo  repositories.FileRepository
	storage   blobstore.ObjectStorage
	cache     *store.FileStore
	guard     *HierarchyGuard
	txManager repositories.TransactionManager
	limits    *config.UploadLimits
	ingest    IngestTrigger
	logger    *slog.Logger
}

// NewFileService creates a file service.
func NewFileService(
	fileRepo repositories.FileRepository,
	storage blobstore.ObjectStorage,
	cache *store.FileStore,
	guard *HierarchyGuard,
	txManager repositories.TransactionManager,
	limits *config.UploadLimits,
	ingest IngestTrigger,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		fileRepo:  fileRepo,
		storage:   storage,
		cache:     cache,
		guard:     guard,
		txManager: txManager,
		limits:    limits,
		ingest:    ingest,
		logger:    logger,
	}
}

// Cache exposes the listing cache for read paths.
func (s *FileService) Cache() *store.FileStore { return s.cache }

// ListFolder returns the contents of one folder, serving from the listing
// cache when the folder has been fetched before and no mutation has
// invalidated it since.
func (s *FileService) ListFolder(ctx context.Context, ownerID string, parentID *string) ([]models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Listing(parentID); ok {
		return cached, nil
	}
	if _, err := s.guard.CheckParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}
	nodes, err := s.fileRepo.ListChildren(ctx, parentID, ownerID)
	if err != nil {
		return nil, err
	}
	s.cache.PutListing(parentID, nodes)
	listing, _ := s.cache.Listing(parentID)
	return listing, nil
}

// GetNode returns one node, preferring the metadata cache.
func (s *FileService) GetNode(ctx context.Context, ownerID, nodeID string) (*models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if node, ok := s.cache.Node(nodeID); ok {
		return &node, nil
	}
	node, err := s.fileRepo.GetByID(ctx, nodeID, ownerID)
	if err != nil {
		return nil, err
	}
	s.cache.PutNode(*node)
	return node, nil
}

// Upload stores the payload first, then inserts the table row. If the row
// insert fails the stored object is removed so no orphaned blob remains.
func (s *FileService) Upload(ctx context.Context, token, ownerID string, req *UploadRequest) (*models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := ValidateUpload(name, req.MimeType, int64(len(req.Data)), s.limits); err != nil {
		return nil, err
	}
	if _, err := s.guard.CheckParent(ctx, ownerID, req.ParentID); err != nil {
		return nil, err
	}
	if err := s.guard.CheckName(ctx, ownerID, req.ParentID, name, ""); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storagePath := fmt.Sprintf("%s/%s/%s", ownerID, id, name)
	storedPath, err := s.storage.Upload(ctx, storagePath, req.MimeType, req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to store file payload: %w", err)
	}

	size := int64(len(req.Data))
	now := time.Now()
	node := &models.FileNode{
		ID:          id,
		Name:        name,
		Kind:        models.KindFile,
		MimeType:    optional(req.MimeType),
		SizeBytes:   &size,
		ParentID:    req.ParentID,
		StoragePath: &storedPath,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.fileRepo.Create(ctx, node); err != nil {
		// Roll the payload back so storage and table stay consistent.
		if cleanupErr := s.storage.Remove(ctx, []string{storedPath}); cleanupErr != nil {
			s.logger.Error("failed to remove orphaned payload after insert failure",
				"path", storedPath, "error", cleanupErr)
		}
		return nil, err
	}

	s.cache.Insert(*node)
	s.logger.Info("file uploaded", "id", node.ID, "name", node.Name, "size", size)

	// Ingest is best-effort and must not fail the upload.
	if s.ingest != nil {
		if err := s.ingest.TriggerIngest(ctx, token, storedPath, name); err != nil {
			s.logger.Warn("ingest trigger failed", "path", storedPath, "error", err)
		}
	}
	return node, nil
}

// CreateFolder creates an empty folder under parentID.
func (s *FileService) CreateFolder(ctx context.Context, ownerID, name string, parentID *string) (*models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := ValidateNodeName(name, s.limits); err != nil {
		return nil, err
	}
	if _, err := s.guard.CheckParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}
	if err := s.guard.CheckName(ctx, ownerID, parentID, name, ""); err != nil {
		return nil, err
	}

	now := time.Now()
	node := &models.FileNode{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      models.KindFolder,
		ParentID:  parentID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fileRepo.Create(ctx, node); err != nil {
		return nil, err
	}
	s.cache.Insert(*node)
	s.logger.Info("folder created", "id", node.ID, "name", node.Name)
	return node, nil
}

// Move renames and/or reparents a node. All hierarchy checks run before
// any mutation, so a rejected move leaves both stores untouched.
func (s *FileService) Move(ctx context.Context, ownerID, nodeID string, req *MoveRequest) (*models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	node, err := s.fileRepo.GetByID(ctx, nodeID, ownerID)
	if err != nil {
		return nil, err
	}

	oldParent := node.ParentID
	newName := node.Name
	if req.NewName != nil {
		newName = strings.TrimSpace(*req.NewName)
		if err := ValidateNodeName(newName, s.limits); err != nil {
			return nil, err
		}
	}
	newParent := node.ParentID
	if req.NewParent.Present {
		newParent = req.NewParent.Value
		if _, err := s.guard.CheckParent(ctx, ownerID, newParent); err != nil {
			return nil, err
		}
		if node.IsFolder() {
			if err := s.guard.CheckMove(ctx, ownerID, nodeID, newParent); err != nil {
				return nil, err
			}
		} else if newParent != nil && *newParent == nodeID {
			return nil, &domain.ValidationError{Message: "cannot move a file into itself"}
		}
	}
	if err := s.guard.CheckName(ctx, ownerID, newParent, newName, nodeID); err != nil {
		return nil, err
	}

	node.Name = newName
	node.ParentID = newParent
	node.UpdatedAt = time.Now()
	if err := s.fileRepo.Update(ctx, node); err != nil {
		return nil, err
	}

	// Both the old and the new parent listing are stale now.
	s.cache.Invalidate(nodeID)
	s.cache.InvalidateListing(oldParent)
	s.cache.InvalidateListing(newParent)
	s.cache.PutNode(*node)
	s.logger.Info("node moved", "id", nodeID, "name", newName)
	return node, nil
}

// Delete removes a node. Folders are deleted with their whole subtree:
// the subtree is collected breadth-first with batched child queries, rows
// are removed in one transaction, then payloads are removed from storage.
func (s *FileService) Delete(ctx context.Context, ownerID, nodeID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	node, err := s.fileRepo.GetByID(ctx, nodeID, ownerID)
	if err != nil {
		return err
	}

	ids := []string{node.ID}
	var paths []string
	if node.StoragePath != nil {
		paths = append(paths, *node.StoragePath)
	}

	if node.IsFolder() {
		frontier := []string{node.ID}
		for len(frontier) > 0 {
			children, err := s.fileRepo.ListChildrenOf(ctx, frontier, ownerID)
			if err != nil {
				return fmt.Errorf("failed to collect subtree: %w", err)
			}
			frontier = frontier[:0]
			for _, child := range children {
				ids = append(ids, child.ID)
				if child.StoragePath != nil {
					paths = append(paths, *child.StoragePath)
				}
				if child.IsFolder() {
					frontier = append(frontier, child.ID)
				}
			}
		}
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.fileRepo.DeleteMany(txCtx, ids, ownerID)
	})
	if err != nil {
		return err
	}

	// Rows are gone; blob removal failures leave orphans, not dangling rows.
	if len(paths) > 0 {
		if err := s.storage.Remove(ctx, paths); err != nil {
			s.logger.Error("failed to remove payloads for deleted nodes",
				"count", len(paths), "error", err)
		}
	}

	for _, id := range ids {
		s.cache.Invalidate(id)
	}
	s.cache.InvalidateListing(node.ParentID)
	s.logger.Info("node deleted", "id", nodeID, "subtree_size", len(ids))
	return nil
}

// Download returns a file's payload and its metadata.
func (s *FileService) Download(ctx context.Context, ownerID, nodeID string) (*models.FileNode, []byte, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, nil, err
	}
	node, err := s.fileRepo.GetByID(ctx, nodeID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if node.IsFolder() || node.StoragePath == nil {
		return nil, nil, &domain.ValidationError{Message: "node has no payload"}
	}
	data, err := s.storage.Download(ctx, *node.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return node, data, nil
}

// Search returns files and folders whose name matches the query.
func (s *FileService) Search(ctx context.Context, ownerID, query string) ([]models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Message: "search query is required"}
	}
	return s.fileRepo.SearchByName(ctx, ownerID, query, searchLimit)
}

// Recent returns the most recently updated files.
func (s *FileService) Recent(ctx context.Context, ownerID string) ([]models.FileNode, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.fileRepo.ListRecent(ctx, ownerID, recentLimit)
}

// DeleteMany removes a batch of independently chosen nodes. Each delete is
// isolated so one failure does not abort the rest.
func (s *FileService) DeleteMany(ctx context.Context, ownerID string, nodeIDs []string) (deleted []string, failed []string) {
	for _, id := range nodeIDs {
		if err := s.Delete(ctx, ownerID, id); err != nil {
			s.logger.Warn("batch delete item failed", "id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted, failed
}

// MoveMany reparents a batch of independently chosen nodes under one
// target folder. Each move is isolated so one failure does not abort
// the rest.
func (s *FileService) MoveMany(ctx context.Context, ownerID string, nodeIDs []string, newParent *string) (moved []string, failed []string) {
	req := &MoveRequest{NewParent: ParentField{Present: true, Value: newParent}}
	for _, id := range nodeIDs {
		if _, err := s.Move(ctx, ownerID, id, req); err != nil {
			s.logger.Warn("batch move item failed", "id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		moved = append(moved, id)
	}
	return moved, failed
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return &domain.UnauthorizedError{Message: "not authenticated"}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
