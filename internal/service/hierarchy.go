package service

import (
	"context"
	"fmt"

	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
)

// maxTreeDepth bounds the ancestor walk so a corrupted parent chain cannot
// spin forever.
const maxTreeDepth = 128

// HierarchyGuard enforces the structural invariants of the file tree:
// no cycles through parent links, no duplicate names among siblings.
// Every check runs against the remote store, never a cached listing.
type HierarchyGuard struct {
	fileRepo repositories.FileRepository
}

// NewHierarchyGuard creates a hierarchy guard.
func NewHierarchyGuard(fileRepo repositories.FileRepository) *HierarchyGuard {
	return &HierarchyGuard{fileRepo: fileRepo}
}

// CheckMove rejects a reparent that would make nodeID its own ancestor.
// Moving to root (targetID nil) is always structurally safe.
func (g *HierarchyGuard) CheckMove(ctx context.Context, ownerID, nodeID string, targetID *string) error {
	if targetID == nil {
		return nil
	}
	if *targetID == nodeID {
		return &domain.ValidationError{Message: "cannot move a folder into itself"}
	}

	// Walk up from the target. Hitting nodeID on the way to root means the
	// target lives inside the subtree being moved.
	currentID := *targetID
	for depth := 0; depth < maxTreeDepth; depth++ {
		node, err := g.fileRepo.GetByID(ctx, currentID, ownerID)
		if err != nil {
			return fmt.Errorf("move target check failed: %w", err)
		}
		if !node.IsFolder() {
			return &domain.ValidationError{Message: "move target is not a folder"}
		}
		if node.ParentID == nil {
			return nil
		}
		if *node.ParentID == nodeID {
			return &domain.ValidationError{Message: "cannot move a folder into its own subtree"}
		}
		currentID = *node.ParentID
	}
	return &domain.ValidationError{Message: "folder tree is too deep"}
}

// CheckName rejects a create, rename, or move that would place two
// siblings with the same name under parentID. excludeID skips the node
// being renamed or moved.
func (g *HierarchyGuard) CheckName(ctx context.Context, ownerID string, parentID *string, name, excludeID string) error {
	siblings, err := g.fileRepo.ListChildren(ctx, parentID, ownerID)
	if err != nil {
		return fmt.Errorf("sibling name check failed: %w", err)
	}
	for _, sibling := range siblings {
		if sibling.ID != excludeID && sibling.Name == name {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("an item named %q already exists in this location", name),
				ResourceType: sibling.Kind,
				ResourceID:   sibling.ID,
			}
		}
	}
	return nil
}

// CheckParent verifies that parentID exists, belongs to ownerID, and is a
// folder. A nil parentID is the root and always valid.
func (g *HierarchyGuard) CheckParent(ctx context.Context, ownerID string, parentID *string) (*models.FileNode, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := g.fileRepo.GetByID(ctx, *parentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid parent folder: %w", err)
	}
	if !parent.IsFolder() {
		return nil, &domain.ValidationError{Message: "parent is not a folder"}
	}
	return parent, nil
}
