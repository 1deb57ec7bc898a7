package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quillpress/apiserver/internal/auth"
	"github.com/quillpress/apiserver/internal/services"
	"github.com/quillpress/apiserver/internal/storage"
	"github.com/quillpress/apiserver/internal/store"
	"github.com/quillpress/apiserver/types"
)

const testSecret = "handler-test-secret"

type memoryUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func (m *memoryUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	return user, nil
}

type memoryPosts struct {
	mu     sync.Mutex
	users  *memoryUsers
	nextID int
	byID   map[int]types.Post
}

func (m *memoryPosts) ListPublished(ctx context.Context) ([]types.Post, error) {
	return m.filter(func(p types.Post) bool { return p.Published }), nil
}

func (m *memoryPosts) ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error) {
	return m.filter(func(p types.Post) bool { return p.AuthorID == authorID }), nil
}

func (m *memoryPosts) Get(ctx context.Context, id int) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.byID[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (m *memoryPosts) Create(ctx context.Context, authorID int, input types.PostInput) (types.Post, error) {
	author, err := m.users.GetByID(ctx, authorID)
	if err != nil {
		return types.Post{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	post := types.Post{
		ID:        m.nextID,
		Title:     input.Title,
		Content:   input.Content,
		AuthorID:  authorID,
		Author:    types.Author{Name: author.Name, Email: author.Email},
		CreatedAt: time.Now(),
	}
	if input.Published != nil {
		post.Published = *input.Published
	}
	if input.ImageURL != "" {
		imageURL := input.ImageURL
		post.ImageURL = &imageURL
	}
	post.UpdatedAt = post.CreatedAt
	m.byID[post.ID] = post
	return post, nil
}

func (m *memoryPosts) UpdateOwned(ctx context.Context, authorID, id int, input types.PostInput) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.byID[id]
	if !ok || post.AuthorID != authorID {
		return types.Post{}, store.ErrNotFound
	}
	post.Title = input.Title
	post.Content = input.Content
	if input.Published != nil {
		post.Published = *input.Published
	}
	if input.ImageURL != "" {
		imageURL := input.ImageURL
		post.ImageURL = &imageURL
	}
	post.UpdatedAt = time.Now()
	m.byID[id] = post
	return post, nil
}

func (m *memoryPosts) DeleteOwned(ctx context.Context, authorID, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.byID[id]
	if !ok || post.AuthorID != authorID {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryPosts) filter(keep func(types.Post) bool) []types.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []types.Post
	for _, post := range m.byID {
		if keep(post) {
			posts = append(posts, post)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// testAPI mounts the handlers the same way the server does, over in-memory
// repositories.
type testAPI struct {
	server  *httptest.Server
	tokens  *auth.TokenService
	objects *memoryObjects
}

func newTestAPI(t *testing.T, maxUploadBytes int64) *testAPI {
	t.Helper()

	users := &memoryUsers{byID: make(map[int]types.User)}
	posts := &memoryPosts{users: users, byID: make(map[int]types.Post)}
	objects := &memoryObjects{objects: make(map[string][]byte)}
	tokens := auth.NewTokenService(testSecret, time.Hour)

	userService := services.NewUserService(users, tokens)
	postService := services.NewPostService(posts, nil, nil)
	uploadService := services.NewUploadService(objects, "/uploads", maxUploadBytes, nil, nil)
	gate := RequireAuth(tokens)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz(nil))
	router.Route("/api", func(r chi.Router) {
		AuthRouter(r, userService, gate, nil, nil)
		UploadRouter(r, uploadService, gate, nil)
		r.Route("/posts", func(r chi.Router) {
			PostRouter(r, postService, gate, nil)
		})
	})
	router.Route("/uploads", func(r chi.Router) {
		ContentRouter(r, uploadService, nil)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, tokens: tokens, objects: objects}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
