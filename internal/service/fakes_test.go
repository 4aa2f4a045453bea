package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfoliocv/internal/domain"
	"portfoliocv/internal/repository"
)

// memStore - хранилище метаданных в памяти. Транзакция работает с копией
// версий пользователя и применяется целиком только при успехе fn.
type memStore struct {
	mu        sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex
	users     map[uuid.UUID]*memUser
	versions  map[uuid.UUID]domain.CVVersion

	insertErr error
}

type memUser struct {
	user domain.User
	seq  int
}

func newMemStore() *memStore {
	return &memStore{
		userLocks: make(map[uuid.UUID]*sync.Mutex),
		users:     make(map[uuid.UUID]*memUser),
		versions:  make(map[uuid.UUID]domain.CVVersion),
	}
}

func (s *memStore) addUser(name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.users[id] = &memUser{user: domain.User{ID: id, DisplayName: name, CreatedAt: time.Now().UTC()}}
	s.userLocks[id] = &sync.Mutex{}
	return id
}

func (s *memStore) GetUser(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user := u.user
	return &user, nil
}

func (s *memStore) GetVersion(_ context.Context, versionID uuid.UUID) (*domain.CVVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[versionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (s *memStore) ListVersions(_ context.Context, userID uuid.UUID) ([]domain.CVVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userVersions(userID), nil
}

func (s *memStore) GetActiveVersion(_ context.Context, userID uuid.UUID) (*domain.CVVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions {
		if v.UserID == userID && v.IsActive {
			return &v, nil
		}
	}
	return nil, domain.ErrNotFound
}

// userVersions возвращает версии пользователя по убыванию номера, s.mu должен быть захвачен
func (s *memStore) userVersions(userID uuid.UUID) []domain.CVVersion {
	res := make([]domain.CVVersion, 0)
	for _, v := range s.versions {
		if v.UserID == userID {
			res = append(res, v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VersionNumber > res[j].VersionNumber })
	return res
}

func (s *memStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx repository.VersionTx) error) error {
	s.mu.Lock()
	u, ok := s.users[userID]
	lock := s.userLocks[userID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// снимок берется под блокировкой пользователя
	s.mu.Lock()
	tx := &memTx{
		store:    s,
		userID:   userID,
		seq:      u.seq,
		cvURL:    u.user.CVURL,
		versions: make(map[uuid.UUID]domain.CVVersion),
	}
	for _, v := range s.userVersions(userID) {
		tx.versions[v.ID] = v
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *memStore) commit(tx *memTx) error {
	active := 0
	numbers := make(map[int]bool)
	for _, v := range tx.versions {
		if v.IsActive {
			active++
		}
		if numbers[v.VersionNumber] {
			return fmt.Errorf("duplicate version number %d", v.VersionNumber)
		}
		numbers[v.VersionNumber] = true
	}
	if len(tx.versions) > 0 && active != 1 {
		return fmt.Errorf("user has %d active versions", active)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, v := range s.versions {
		if v.UserID == tx.userID {
			delete(s.versions, id)
		}
	}
	for id, v := range tx.versions {
		s.versions[id] = v
	}
	u := s.users[tx.userID]
	u.seq = tx.seq
	u.user.CVURL = tx.cvURL
	return nil
}

type memTx struct {
	store    *memStore
	userID   uuid.UUID
	seq      int
	cvURL    string
	versions map[uuid.UUID]domain.CVVersion
}

func (t *memTx) NextVersionNumber(_ context.Context) (int, error) {
	t.seq++
	return t.seq, nil
}

func (t *memTx) CountVersions(_ context.Context) (int, error) {
	return len(t.versions), nil
}

func (t *memTx) GetVersion(_ context.Context, versionID uuid.UUID) (*domain.CVVersion, error) {
	v, ok := t.versions[versionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (t *memTx) LatestVersion(_ context.Context) (*domain.CVVersion, error) {
	var latest *domain.CVVersion
	for _, v := range t.versions {
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			v := v
			latest = &v
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (t *memTx) DeactivateAll(_ context.Context) error {
	for id, v := range t.versions {
		v.IsActive = false
		t.versions[id] = v
	}
	return nil
}

func (t *memTx) InsertVersion(_ context.Context, version *domain.CVVersion) error {
	t.store.mu.Lock()
	err := t.store.insertErr
	t.store.mu.Unlock()
	if err != nil {
		return domain.Wrap(domain.ErrPersistenceFailure, "insert cv version", err)
	}
	version.UserID = t.userID
	version.CreatedAt = time.Now().UTC()
	t.versions[version.ID] = *version
	return nil
}

func (t *memTx) ActivateVersion(_ context.Context, versionID uuid.UUID) error {
	v, ok := t.versions[versionID]
	if !ok {
		return domain.ErrNotFound
	}
	v.IsActive = true
	t.versions[versionID] = v
	return nil
}

func (t *memTx) DeleteVersion(_ context.Context, versionID uuid.UUID) error {
	if _, ok := t.versions[versionID]; !ok {
		return domain.ErrNotFound
	}
	delete(t.versions, versionID)
	return nil
}

func (t *memTx) SetUserCVURL(_ context.Context, url string) error {
	t.cvURL = url
	return nil
}

const memURLPrefix = "mem://cv-bucket/"

// memObjects - объектное хранилище в памяти с внедряемыми ошибками
type memObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (o *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.putErr != nil {
		return domain.Wrap(domain.ErrStorageFailure, "put object", o.putErr)
	}
	o.objects[key] = bytes.Clone(data)
	return nil
}

func (o *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, ok := o.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.deleteErr != nil {
		return domain.Wrap(domain.ErrStorageFailure, "delete object", o.deleteErr)
	}
	delete(o.objects, key)
	return nil
}

func (o *memObjects) ResolveURL(_ context.Context, key string) (string, error) {
	return memURLPrefix + key, nil
}

func (o *memObjects) has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[key]
	return ok
}

func (o *memObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// fetch получает объект по ссылке, выданной ResolveURL
func (o *memObjects) fetch(url string) ([]byte, error) {
	if !strings.HasPrefix(url, memURLPrefix) {
		return nil, errors.New("foreign url")
	}
	body, err := o.Get(context.Background(), strings.TrimPrefix(url, memURLPrefix))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// memDownloads - журнал скачиваний в памяти
type memDownloads struct {
	mu        sync.Mutex
	events    []domain.DownloadEvent
	insertErr error
}

func (d *memDownloads) InsertDownloadEvent(_ context.Context, event *domain.DownloadEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.insertErr != nil {
		return domain.Wrap(domain.ErrPersistenceFailure, "insert download event", d.insertErr)
	}
	d.events = append(d.events, *event)
	return nil
}

func (d *memDownloads) CountDownloads(_ context.Context, versionID uuid.UUID) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int64
	for _, e := range d.events {
		if e.VersionID == versionID {
			n++
		}
	}
	return n, nil
}

func (d *memDownloads) ListDownloadTimes(_ context.Context, versionID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := make([]time.Time, 0)
	for _, e := range d.events {
		if e.VersionID != versionID || e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		res = append(res, e.CreatedAt)
	}
	return res, nil
}

func (d *memDownloads) add(versionID uuid.UUID, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, domain.DownloadEvent{ID: uuid.New(), VersionID: versionID, CreatedAt: at})
}

func (d *memDownloads) all() []domain.DownloadEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DownloadEvent(nil), d.events...)
}
