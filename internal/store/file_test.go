package store

import (
	"fmt"
	"sync"
	"testing"

	"drivechat/internal/domain/models"
)

func node(id, name, kind string, parentID *string) models.FileNode {
	return models.FileNode{ID: id, Name: name, Kind: kind, ParentID: parentID}
}

func TestPutListingOrdersFoldersFirst(t *testing.T) {
	s := NewFileStore()
	s.PutListing(nil, []models.FileNode{
		node("f1", "zebra.txt", models.KindFile, nil),
		node("d1", "beta", models.KindFolder, nil),
		node("f2", "alpha.txt", models.KindFile, nil),
		node("d2", "alpha", models.KindFolder, nil),
	})

	list, ok := s.Listing(nil)
	if !ok {
		t.Fatal("expected cache hit")
	}
	want := []string{"alpha", "beta", "alpha.txt", "zebra.txt"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("position %d = %q, want %q", i, list[i].Name, name)
		}
	}
}

func TestInsertIntoCachedListing(t *testing.T) {
	s := NewFileStore()
	s.PutListing(nil, []models.FileNode{
		node("d1", "docs", models.KindFolder, nil),
	})

	s.Insert(node("f1", "a.txt", models.KindFile, nil))

	list, _ := s.Listing(nil)
	if len(list) != 2 || list[1].ID != "f1" {
		t.Errorf("listing after insert = %v", list)
	}

	// Same id merge-replaces, never duplicates.
	renamed := node("f1", "b.txt", models.KindFile, nil)
	s.Insert(renamed)
	list, _ = s.Listing(nil)
	if len(list) != 2 {
		t.Fatalf("duplicate id introduced: %d entries", len(list))
	}
}

func TestInsertSkipsUncachedListing(t *testing.T) {
	s := NewFileStore()
	parent := "d1"
	s.Insert(node("f1", "a.txt", models.KindFile, &parent))

	if _, ok := s.Listing(&parent); ok {
		t.Error("insert materialized a listing that was never fetched")
	}
	if _, ok := s.Node("f1"); !ok {
		t.Error("node metadata not cached")
	}
}

func TestInvalidateIsMutationDriven(t *testing.T) {
	s := NewFileStore()
	parent := "d1"
	s.PutListing(nil, []models.FileNode{node("d1", "docs", models.KindFolder, nil)})
	s.PutListing(&parent, []models.FileNode{node("f1", "a.txt", models.KindFile, &parent)})

	// Mutating f1 drops its metadata and every listing containing it,
	// but leaves unrelated listings alone.
	s.Invalidate("f1")

	if _, ok := s.Listing(&parent); ok {
		t.Error("listing containing mutated node survived invalidation")
	}
	if _, ok := s.Node("f1"); ok {
		t.Error("metadata for mutated node survived invalidation")
	}
	if _, ok := s.Listing(nil); !ok {
		t.Error("unrelated listing was invalidated")
	}
}

func TestFileStoreConcurrentAccess(t *testing.T) {
	s := NewFileStore()
	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				id := fmt.Sprintf("f-%d-%d", g, i)
				s.Insert(node(id, id+".txt", models.KindFile, nil))
				_, _ = s.Listing(nil)
				_, _ = s.Node(id)
				s.Invalidate(id)
				s.PutNode(node(id, id+".txt", models.KindFile, nil))
			}
		}()
	}
	wg.Wait()

	if _, ok := s.Node("f-0-0"); !ok {
		t.Error("node metadata lost after concurrent access")
	}
}

func TestListingReturnsCopy(t *testing.T) {
	s := NewFileStore()
	s.PutListing(nil, []models.FileNode{node("f1", "a.txt", models.KindFile, nil)})

	list, _ := s.Listing(nil)
	list[0].Name = "mutated by caller"

	fresh, _ := s.Listing(nil)
	if fresh[0].Name != "a.txt" {
		t.Errorf("caller mutation leaked into cache: %q", fresh[0].Name)
	}
}

func TestInvalidateListing(t *testing.T) {
	s := NewFileStore()
	s.PutListing(nil, []models.FileNode{node("f1", "a.txt", models.KindFile, nil)})
	s.InvalidateListing(nil)
	if _, ok := s.Listing(nil); ok {
		t.Error("listing survived explicit invalidation")
	}
}
