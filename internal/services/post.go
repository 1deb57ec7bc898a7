package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/quillpress/apiserver/internal/store"
	"github.com/quillpress/apiserver/types"
)

// PostRepository defines persistence operations for posts. Owner-scoped
// writes must apply the author filter inside the write and report a
// missing or foreign row as store.ErrNotFound.
type PostRepository interface {
	ListPublished(ctx context.Context) ([]types.Post, error)
	ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, authorID int, input types.PostInput) (types.Post, error)
	UpdateOwned(ctx context.Context, authorID, id int, input types.PostInput) (types.Post, error)
	DeleteOwned(ctx context.Context, authorID, id int) error
}

// EventPublisher delivers domain events to a broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event types.Event) error
}

// PostService encapsulates post use-cases and ownership rules.
type PostService struct {
	repo   PostRepository
	events EventPublisher
	log    *slog.Logger
}

// NewPostService constructs a PostService. events may be nil.
func NewPostService(repo PostRepository, events EventPublisher, log *slog.Logger) *PostService {
	if log == nil {
		log = slog.Default()
	}
	return &PostService{repo: repo, events: events, log: log}
}

// ListPublished returns every published post with its author.
func (s *PostService) ListPublished(ctx context.Context) ([]types.Post, error) {
	return s.repo.ListPublished(ctx)
}

// Get returns a post by ID regardless of its publish state.
func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// ListMine returns all posts written by userID, drafts included.
func (s *PostService) ListMine(ctx context.Context, userID int) ([]types.Post, error) {
	if userID < 1 {
		return nil, ErrUnauthenticated
	}
	return s.repo.ListByAuthor(ctx, userID)
}

func (s *PostService) Create(ctx context.Context, userID int, input types.PostInput) (types.Post, error) {
	if userID < 1 {
		return types.Post{}, ErrUnauthenticated
	}
	input, err := normalizePostInput(input)
	if err != nil {
		return types.Post{}, err
	}

	post, err := s.repo.Create(ctx, userID, input)
	if err != nil {
		return types.Post{}, err
	}

	s.publish(ctx, types.Event{
		Type:      types.EventPostCreated,
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Published: &post.Published,
		ImageURL:  imageURLOf(post),
	})
	return post, nil
}

// Update rewrites a post owned by userID. Posts that do not exist and posts
// owned by someone else both fail with ErrForbidden.
func (s *PostService) Update(ctx context.Context, userID, id int, input types.PostInput) (types.Post, error) {
	if userID < 1 {
		return types.Post{}, ErrUnauthenticated
	}
	input, err := normalizePostInput(input)
	if err != nil {
		return types.Post{}, err
	}

	post, err := s.repo.UpdateOwned(ctx, userID, id, input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrForbidden
		}
		return types.Post{}, err
	}

	s.publish(ctx, types.Event{
		Type:      types.EventPostUpdated,
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Published: &post.Published,
		ImageURL:  imageURLOf(post),
	})
	return post, nil
}

// Delete removes a post owned by userID, with the same error rules as
// Update.
func (s *PostService) Delete(ctx context.Context, userID, id int) error {
	if userID < 1 {
		return ErrUnauthenticated
	}

	if err := s.repo.DeleteOwned(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}

	s.publish(ctx, types.Event{
		Type:     types.EventPostDeleted,
		PostID:   id,
		AuthorID: userID,
	})
	return nil
}

// publish never fails the caller; broker trouble is only logged.
func (s *PostService) publish(ctx context.Context, event types.Event) {
	if s.events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.log.WarnContext(ctx, "publish event failed",
			slog.String("type", string(event.Type)),
			slog.Int("post_id", event.PostID),
			slog.Any("error", err),
		)
	}
}

// normalizePostInput rejects blank titles and bodies but returns them as
// submitted. Only the image reference is trimmed.
func normalizePostInput(input types.PostInput) (types.PostInput, error) {
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	check := input
	check.Title = strings.TrimSpace(input.Title)
	check.Content = strings.TrimSpace(input.Content)
	if err := validateStruct(check); err != nil {
		return types.PostInput{}, err
	}
	return input, nil
}

func imageURLOf(post types.Post) string {
	if post.ImageURL == nil {
		return ""
	}
	return *post.ImageURL
}
