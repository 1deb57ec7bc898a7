package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/quillpress/apiserver/internal/storage"
	"github.com/quillpress/apiserver/internal/store"
	"github.com/quillpress/apiserver/types"
)

type memoryUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[int]types.User)}
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

// memoryPosts applies the same owner filter semantics as the SQL repository.
type memoryPosts struct {
	mu     sync.Mutex
	users  *memoryUsers
	nextID int
	byID   map[int]types.Post
}

func newMemoryPosts(users *memoryUsers) *memoryPosts {
	return &memoryPosts{users: users, byID: make(map[int]types.Post)}
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
	posts := make([]types.Post, 0)
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
	ctypes  map[string]string
	puts    int
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte), ctypes: make(map[string]string)}
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.objects[key] = data
	m.ctypes[key] = contentType
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

type recordingEvents struct {
	mu     sync.Mutex
	events []types.Event
	err    error
}

func (r *recordingEvents) PublishEvent(ctx context.Context, event types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingEvents) kinds() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

type failingIssuer struct{}

func (failingIssuer) Issue(int) (string, error) {
	return "", errors.New("signing unavailable")
}

func boolPtr(v bool) *bool {
	return &v
}
