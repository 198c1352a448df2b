package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/dbx"
	"github.com/dkovalov/filegate/internal/server/models"
	bindingsrepo "github.com/dkovalov/filegate/internal/server/repositories/bindings"
	filesrepo "github.com/dkovalov/filegate/internal/server/repositories/files"
	grantsrepo "github.com/dkovalov/filegate/internal/server/repositories/grants"
	sessionsrepo "github.com/dkovalov/filegate/internal/server/repositories/sessions"
)

// --- in-memory repositories ---
//
// The fakes reproduce the atomicity the Postgres layer guarantees (the
// bind upsert and the grant upsert are serialized under a mutex), so the
// concurrency-sensitive service tests exercise the same contract.

type fakeBindingsRepo struct {
	mu       sync.Mutex
	bindings map[int64]*models.DeviceBinding
	bindErr  error
}

func newFakeBindingsRepo() *fakeBindingsRepo {
	return &fakeBindingsRepo{bindings: map[int64]*models.DeviceBinding{}}
}

func (f *fakeBindingsRepo) Bind(ctx context.Context, userID int64, fingerprint string) (*models.DeviceBinding, error) {
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.bindings[userID]; ok {
		c := *existing
		return &c, nil
	}
	b := &models.DeviceBinding{UserID: userID, Fingerprint: fingerprint, BoundAt: time.Now()}
	f.bindings[userID] = b
	c := *b
	return &c, nil
}

func (f *fakeBindingsRepo) Get(ctx context.Context, userID int64) (*models.DeviceBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bindings[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeBindingsRepo) Delete(ctx context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.bindings[userID]
	delete(f.bindings, userID)
	return ok, nil
}

type fakeSessionsRepo struct {
	mu            sync.Mutex
	sessions      map[string]*models.Session
	failDuplicate int // force this many duplicate errors on Create
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{sessions: map[string]*models.Session{}}
}

func (f *fakeSessionsRepo) Create(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDuplicate > 0 {
		f.failDuplicate--
		return common.ErrDuplicate
	}
	if _, ok := f.sessions[session.Token]; ok {
		return common.ErrDuplicate
	}
	c := *session
	f.sessions[session.Token] = &c
	return nil
}

func (f *fakeSessionsRepo) Find(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.Expired(now) {
		return nil, common.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[token]
	delete(f.sessions, token)
	return ok, nil
}

func (f *fakeSessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

type grantKey struct{ userID, groupID int64 }

type fakeGrantsRepo struct {
	mu        sync.Mutex
	grants    map[grantKey]*models.RoleGrant
	deleteErr map[int64]error    // per-user DeleteExpiredForUser failures
	onDelete  func(userID int64) // runs before DeleteExpiredForUser's work
}

func newFakeGrantsRepo() *fakeGrantsRepo {
	return &fakeGrantsRepo{grants: map[grantKey]*models.RoleGrant{}, deleteErr: map[int64]error{}}
}

func (f *fakeGrantsRepo) Upsert(ctx context.Context, userID, groupID int64, expiresAt *time.Time) (*models.RoleGrant, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := grantKey{userID, groupID}
	now := time.Now()

	if g, ok := f.grants[key]; ok {
		g.ExpiresAt = expiresAt
		g.UpdatedAt = now
		c := *g
		return &c, false, nil
	}

	g := &models.RoleGrant{UserID: userID, GroupID: groupID, ExpiresAt: expiresAt, CreatedAt: now, UpdatedAt: now}
	f.grants[key] = g
	c := *g
	return &c, true, nil
}

func (f *fakeGrantsRepo) ListByUser(ctx context.Context, userID int64) ([]*models.RoleGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.RoleGrant
	for key, g := range f.grants {
		if key.userID == userID {
			c := *g
			result = append(result, &c)
		}
	}
	return result, nil
}

func (f *fakeGrantsRepo) ListExpired(ctx context.Context, now time.Time) ([]*models.RoleGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.RoleGrant
	for _, g := range f.grants {
		if g.ExpiredAt(now) {
			c := *g
			result = append(result, &c)
		}
	}
	return result, nil
}

func (f *fakeGrantsRepo) DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) ([]int64, error) {
	if f.onDelete != nil {
		f.onDelete(userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[userID]; err != nil {
		return nil, err
	}
	var groupIDs []int64
	for key, g := range f.grants {
		if key.userID == userID && g.ExpiredAt(now) {
			delete(f.grants, key)
			groupIDs = append(groupIDs, key.groupID)
		}
	}
	return groupIDs, nil
}

type fakeFilesRepo struct {
	mu     sync.Mutex
	nextID int64
	files  map[int64]*models.FileRecord
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{files: map[int64]*models.FileRecord{}}
}

func (f *fakeFilesRepo) put(file *models.FileRecord) *models.FileRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	file.ID = f.nextID
	c := *file
	f.files[file.ID] = &c
	return file
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	now := time.Now()
	file.CreatedAt = now
	file.UpdatedAt = now
	return f.put(file), nil
}

func (f *fakeFilesRepo) Get(ctx context.Context, id int64) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *file
	return &c, nil
}

func (f *fakeFilesRepo) List(ctx context.Context) ([]*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.FileRecord
	for _, file := range f.files {
		c := *file
		result = append(result, &c)
	}
	return result, nil
}

func (f *fakeFilesRepo) UpdatePolicy(ctx context.Context, id int64, isPublic *bool, allowedGroups []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return common.ErrNotFound
	}
	if isPublic != nil {
		file.IsPublic = *isPublic
	}
	if allowedGroups != nil {
		file.AllowedGroups = allowedGroups
	}
	file.UpdatedAt = time.Now()
	return nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[id]
	delete(f.files, id)
	return ok, nil
}

type fakeRepoManager struct {
	bindings *fakeBindingsRepo
	sessions *fakeSessionsRepo
	grants   *fakeGrantsRepo
	files    *fakeFilesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		bindings: newFakeBindingsRepo(),
		sessions: newFakeSessionsRepo(),
		grants:   newFakeGrantsRepo(),
		files:    newFakeFilesRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Bindings(db dbx.DBTX) bindingsrepo.Repository    { return m.bindings }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository    { return m.sessions }
func (m *fakeRepoManager) Grants(db dbx.DBTX) grantsrepo.Repository        { return m.grants }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository          { return m.files }

// --- external collaborators ---

type fakeCredentials struct {
	users map[string]struct {
		id       int64
		password string
	}
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{users: map[string]struct {
		id       int64
		password string
	}{}}
}

func (f *fakeCredentials) add(identifier string, id int64, password string) {
	f.users[identifier] = struct {
		id       int64
		password string
	}{id, password}
}

func (f *fakeCredentials) Verify(ctx context.Context, identifier, password string) (int64, error) {
	u, ok := f.users[identifier]
	if !ok || u.password != password {
		return 0, common.ErrAuthFailed
	}
	return u.id, nil
}

type fakeMembership struct {
	mu        sync.Mutex
	groups    map[int64]map[int64]struct{}
	addCalls  int
	addErr    error
	removeErr map[int64]error // per-user Remove failures
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{groups: map[int64]map[int64]struct{}{}, removeErr: map[int64]error{}}
}

func (f *fakeMembership) Add(ctx context.Context, userID, groupID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return f.addErr
	}
	if f.groups[userID] == nil {
		f.groups[userID] = map[int64]struct{}{}
	}
	f.groups[userID][groupID] = struct{}{}
	return nil
}

func (f *fakeMembership) Remove(ctx context.Context, userID int64, groupIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[userID]; err != nil {
		return err
	}
	for _, g := range groupIDs {
		delete(f.groups[userID], g)
	}
	return nil
}

func (f *fakeMembership) ListGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []int64
	for g := range f.groups[userID] {
		result = append(result, g)
	}
	return result, nil
}

func (f *fakeMembership) has(userID, groupID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.groups[userID][groupID]
	return ok
}

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string]string{}}
}

func (f *fakeBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeBlobStore) PresignGet(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("https://blobs.test/get/%s", key), nil
}

func (f *fakeBlobStore) PresignPut(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("https://blobs.test/put/%s", key), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}
