package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"drivechat/internal/config"
	"drivechat/internal/domain"
	"drivechat/internal/domain/models"
	"drivechat/internal/domain/repositories"
	"drivechat/internal/store"
)

const testOwner = "owner-1"

type fakeFileRepo struct {
	nodes map[string]models.FileNode

	createErr error
	updateErr error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{nodes: make(map[string]models.FileNode)}
}

func (r *fakeFileRepo) add(n models.FileNode) {
	if n.OwnerID == "" {
		n.OwnerID = testOwner
	}
	r.nodes[n.ID] = n
}

func (r *fakeFileRepo) Create(_ context.Context, node *models.FileNode) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nodes[node.ID] = *node
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id, ownerID string) (*models.FileNode, error) {
	n, ok := r.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (r *fakeFileRepo) ListChildren(_ context.Context, parentID *string, ownerID string) ([]models.FileNode, error) {
	var out []models.FileNode
	for _, n := range r.nodes {
		if n.OwnerID != ownerID {
			continue
		}
		if (parentID == nil && n.ParentID == nil) ||
			(parentID != nil && n.ParentID != nil && *parentID == *n.ParentID) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) ListChildrenOf(_ context.Context, parentIDs []string, ownerID string) ([]models.FileNode, error) {
	var out []models.FileNode
	for _, n := range r.nodes {
		if n.OwnerID != ownerID || n.ParentID == nil {
			continue
		}
		for _, pid := range parentIDs {
			if *n.ParentID == pid {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeFileRepo) Update(_ context.Context, node *models.FileNode) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.nodes[node.ID]; !ok {
		return domain.ErrNotFound
	}
	r.nodes[node.ID] = *node
	return nil
}

func (r *fakeFileRepo) DeleteMany(_ context.Context, ids []string, ownerID string) error {
	for _, id := range ids {
		if n, ok := r.nodes[id]; ok && n.OwnerID == ownerID {
			delete(r.nodes, id)
		}
	}
	return nil
}

func (r *fakeFileRepo) SearchByName(_ context.Context, ownerID, query string, limit int) ([]models.FileNode, error) {
	var out []models.FileNode
	for _, n := range r.nodes {
		if n.OwnerID == ownerID && strings.Contains(strings.ToLower(n.Name), strings.ToLower(query)) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) ListRecent(_ context.Context, ownerID string, limit int) ([]models.FileNode, error) {
	var out []models.FileNode
	for _, n := range r.nodes {
		if n.OwnerID == ownerID && n.Kind == models.KindFile {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeStorage struct {
	objects   map[string][]byte
	uploadErr error
	removed   [][]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, path, _ string, data []byte) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.objects[path] = data
	return path, nil
}

func (s *fakeStorage) Download(_ context.Context, path string) ([]byte, error) {
	data, ok := s.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *fakeStorage) Remove(_ context.Context, paths []string) error {
	s.removed = append(s.removed, paths)
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

type fakeTxManager struct{}

func (fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

type fakeIngest struct {
	calls int
	err   error
}

func (f *fakeIngest) TriggerIngest(_ context.Context, _, _, _ string) error {
	f.calls++
	return f.err
}

func testLimits(t *testing.T) *config.UploadLimits {
	t.Helper()
	limits, err := config.LoadUploadLimits()
	if err != nil {
		t.Fatalf("LoadUploadLimits: %v", err)
	}
	return limits
}

func testService(t *testing.T, repo *fakeFileRepo, storage *fakeStorage, ingest *fakeIngest) *FileService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var trigger IngestTrigger
	if ingest != nil {
		trigger = ingest
	}
	return NewFileService(
		repo, storage, store.NewFileStore(), NewHierarchyGuard(repo),
		fakeTxManager{}, testLimits(t), trigger, logger,
	)
}

func strPtr(s string) *string { return &s }

func folder(id, name string, parentID *string) models.FileNode {
	return models.FileNode{
		ID: id, Name: name, Kind: models.KindFolder, ParentID: parentID,
		OwnerID: testOwner, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

func file(id, name string, parentID *string) models.FileNode {
	path := testOwner + "/" + id + "/" + name
	return models.FileNode{
		ID: id, Name: name, Kind: models.KindFile, ParentID: parentID,
		StoragePath: &path, OwnerID: testOwner,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

func TestUploadStoresPayloadAndRow(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	ingest := &fakeIngest{}
	svc := testService(t, repo, storage, ingest)

	node, err := svc.Upload(context.Background(), "tok", testOwner, &UploadRequest{
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.7"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if node.StoragePath == nil {
		t.Fatal("node has no storage path")
	}
	if _, ok := storage.objects[*node.StoragePath]; !ok {
		t.Error("payload not stored")
	}
	if _, ok := repo.nodes[node.ID]; !ok {
		t.Error("row not inserted")
	}
	if ingest.calls != 1 {
		t.Errorf("ingest calls = %d, want 1", ingest.calls)
	}
}

func TestUploadRemovesBlobWhenInsertFails(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	svc := testService(t, repo, storage, nil)

	repo.createErr = errors.New("insert refused")
	_, err := svc.Upload(context.Background(), "tok", testOwner, &UploadRequest{
		Name: "report.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.7"),
	})
	if err == nil {
		t.Fatal("expected insert failure to surface")
	}
	if len(storage.objects) != 0 {
		t.Errorf("orphaned payloads left behind: %v", storage.objects)
	}
	if len(storage.removed) == 0 {
		t.Error("cleanup removal never issued")
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc := testService(t, newFakeFileRepo(), newFakeStorage(), nil)

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{"empty name", UploadRequest{Name: "", Data: []byte("x")}},
		{"illegal chars", UploadRequest{Name: "a/b.txt", Data: []byte("x")}},
		{"reserved name", UploadRequest{Name: "CON.txt", Data: []byte("x")}},
		{"trailing dot", UploadRequest{Name: "notes.", Data: []byte("x")}},
		{"empty payload", UploadRequest{Name: "empty.txt", Data: nil}},
		{"disallowed type", UploadRequest{Name: "app.exe", MimeType: "application/x-msdownload", Data: []byte("x")}},
		{"name too long", UploadRequest{Name: strings.Repeat("a", 300) + ".txt", Data: []byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), "tok", testOwner, &tt.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestUploadIngestFailureDoesNotFailUpload(t *testing.T) {
	repo := newFakeFileRepo()
	ingest := &fakeIngest{err: errors.New("pipeline down")}
	svc := testService(t, repo, newFakeStorage(), ingest)

	if _, err := svc.Upload(context.Background(), "tok", testOwner, &UploadRequest{
		Name: "notes.txt", MimeType: "text/plain", Data: []byte("hi"),
	}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func TestCreateFolderRejectsSiblingCollision(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(folder("f1", "docs", nil))
	svc := testService(t, repo, newFakeStorage(), nil)

	_, err := svc.CreateFolder(context.Background(), testOwner, "docs", nil)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if conflict.ResourceID != "f1" {
		t.Errorf("conflict resource = %q, want f1", conflict.ResourceID)
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	// root <- a <- b <- c
	repo := newFakeFileRepo()
	repo.add(folder("a", "a", nil))
	repo.add(folder("b", "b", strPtr("a")))
	repo.add(folder("c", "c", strPtr("b")))
	svc := testService(t, repo, newFakeStorage(), nil)

	tests := []struct {
		name   string
		node   string
		target *string
		ok     bool
	}{
		{"into itself", "a", strPtr("a"), false},
		{"into own child", "a", strPtr("b"), false},
		{"into own grandchild", "a", strPtr("c"), false},
		{"child to root", "c", nil, true},
		{"sideways under sibling ancestor", "b", strPtr("a"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Move(context.Background(), testOwner, tt.node, &MoveRequest{
				NewParent: ParentField{Present: true, Value: tt.target},
			})
			if tt.ok && err != nil {
				t.Errorf("move rejected: %v", err)
			}
			if !tt.ok {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("err = %v, want validation error", err)
				}
			}
		})
	}
}

func TestMoveChecksRunBeforeMutation(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(folder("a", "a", nil))
	repo.add(folder("b", "b", strPtr("a")))
	svc := testService(t, repo, newFakeStorage(), nil)

	_, err := svc.Move(context.Background(), testOwner, "a", &MoveRequest{
		NewParent: ParentField{Present: true, Value: strPtr("b")},
	})
	if err == nil {
		t.Fatal("expected cycle rejection")
	}
	if got := repo.nodes["a"]; got.ParentID != nil {
		t.Errorf("node a was reparented despite rejection: %+v", got)
	}
}

func TestMoveRenameCollision(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(file("f1", "draft.txt", nil))
	repo.add(file("f2", "final.txt", nil))
	svc := testService(t, repo, newFakeStorage(), nil)

	_, err := svc.Move(context.Background(), testOwner, "f1", &MoveRequest{NewName: strPtr("final.txt")})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	// Renaming to its own current name is not a collision with itself.
	if _, err := svc.Move(context.Background(), testOwner, "f1", &MoveRequest{NewName: strPtr("draft.txt")}); err != nil {
		t.Errorf("self-rename rejected: %v", err)
	}
}

func TestMoveToRootViaPresentNil(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(folder("a", "a", nil))
	repo.add(file("f1", "deep.txt", strPtr("a")))
	svc := testService(t, repo, newFakeStorage(), nil)

	node, err := svc.Move(context.Background(), testOwner, "f1", &MoveRequest{
		NewParent: ParentField{Present: true, Value: nil},
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if node.ParentID != nil {
		t.Errorf("parent = %v, want root", *node.ParentID)
	}
}

func TestDeleteFolderRemovesWholeSubtree(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	repo.add(folder("a", "a", nil))
	repo.add(folder("b", "b", strPtr("a")))
	f1 := file("f1", "one.txt", strPtr("a"))
	f2 := file("f2", "two.txt", strPtr("b"))
	repo.add(f1)
	repo.add(f2)
	storage.objects[*f1.StoragePath] = []byte("1")
	storage.objects[*f2.StoragePath] = []byte("2")
	repo.add(file("keep", "keep.txt", nil))
	svc := testService(t, repo, storage, nil)

	if err := svc.Delete(context.Background(), testOwner, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, id := range []string{"a", "b", "f1", "f2"} {
		if _, ok := repo.nodes[id]; ok {
			t.Errorf("node %s survived subtree delete", id)
		}
	}
	if _, ok := repo.nodes["keep"]; !ok {
		t.Error("unrelated node was deleted")
	}
	if len(storage.objects) != 0 {
		t.Errorf("payloads survived: %v", storage.objects)
	}
}

func TestDeleteManyIsolatesFailures(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(file("f1", "one.txt", nil))
	svc := testService(t, repo, newFakeStorage(), nil)

	deleted, failed := svc.DeleteMany(context.Background(), testOwner, []string{"f1", "missing"})
	if len(deleted) != 1 || deleted[0] != "f1" {
		t.Errorf("deleted = %v, want [f1]", deleted)
	}
	if len(failed) != 1 || failed[0] != "missing" {
		t.Errorf("failed = %v, want [missing]", failed)
	}
}

func TestMoveManyIsolatesFailures(t *testing.T) {
	repo := newFakeFileRepo()
	dest := folder("dest", "dest", nil)
	repo.add(dest)
	repo.add(file("f1", "one.txt", nil))
	repo.add(file("clash", "taken.txt", nil))
	repo.add(file("f2", "taken.txt", strPtr("dest")))
	svc := testService(t, repo, newFakeStorage(), nil)

	moved, failed := svc.MoveMany(context.Background(), testOwner, []string{"f1", "clash", "missing"}, strPtr("dest"))
	if len(moved) != 1 || moved[0] != "f1" {
		t.Errorf("moved = %v, want [f1]", moved)
	}
	if len(failed) != 2 {
		t.Errorf("failed = %v, want [clash missing]", failed)
	}
	got := repo.nodes["f1"]
	if got.ParentID == nil || *got.ParentID != "dest" {
		t.Errorf("f1 parent = %v, want dest", got.ParentID)
	}
	clash := repo.nodes["clash"]
	if clash.ParentID != nil {
		t.Error("colliding node should not have moved")
	}
}

func TestListFolderUsesCacheUntilInvalidated(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(file("f1", "one.txt", nil))
	svc := testService(t, repo, newFakeStorage(), nil)

	first, err := svc.ListFolder(context.Background(), testOwner, nil)
	if err != nil {
		t.Fatalf("ListFolder: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("listing = %d nodes, want 1", len(first))
	}

	// Mutate the remote store behind the cache's back.
	repo.add(file("f2", "two.txt", nil))
	cached, err := svc.ListFolder(context.Background(), testOwner, nil)
	if err != nil {
		t.Fatalf("ListFolder: %v", err)
	}
	if len(cached) != 1 {
		t.Errorf("cached listing = %d nodes, want the stale 1", len(cached))
	}

	svc.Cache().InvalidateListing(nil)
	fresh, err := svc.ListFolder(context.Background(), testOwner, nil)
	if err != nil {
		t.Fatalf("ListFolder: %v", err)
	}
	if len(fresh) != 2 {
		t.Errorf("fresh listing = %d nodes, want 2", len(fresh))
	}
}

func TestDownloadRejectsFolders(t *testing.T) {
	repo := newFakeFileRepo()
	repo.add(folder("a", "a", nil))
	svc := testService(t, repo, newFakeStorage(), nil)

	_, _, err := svc.Download(context.Background(), testOwner, "a")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestOperationsRequireOwner(t *testing.T) {
	svc := testService(t, newFakeFileRepo(), newFakeStorage(), nil)

	if _, err := svc.ListFolder(context.Background(), "", nil); err == nil {
		t.Error("ListFolder accepted empty owner")
	}
	if err := svc.Delete(context.Background(), "", "x"); err == nil {
		t.Error("Delete accepted empty owner")
	}
}
