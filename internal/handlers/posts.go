package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quillpress/apiserver/internal/services"
	"github.com/quillpress/apiserver/types"
)

// PostHandler serves the post collection.
type PostHandler struct {
	postService *services.PostService
	log         *slog.Logger
}

// NewPostHandler constructs a PostHandler with the provided dependencies.
func NewPostHandler(postService *services.PostService, log *slog.Logger) *PostHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PostHandler{
		postService: postService,
		log:         log,
	}
}

// PostRouter registers post routes on the given router. Reads of single
// posts and the published feed are public; everything else passes through
// authMiddleware.
func PostRouter(
	r chi.Router,
	postService *services.PostService,
	authMiddleware func(http.Handler) http.Handler,
	log *slog.Logger,
) {
	handler := NewPostHandler(postService, log)

	r.Get("/", handler.ListPosts)
	r.With(authMiddleware).Post("/", handler.CreatePost)
	r.With(authMiddleware).Get("/my", handler.ListMyPosts)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.With(authMiddleware).Put("/", handler.UpdatePost)
		r.With(authMiddleware).Delete("/", handler.DeletePost)
	})
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.ListPublished(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err, "list posts")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

func (h *PostHandler) ListMyPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "list posts")
		return
	}

	posts, err := h.postService.ListMine(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "list posts")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "fetch post")
		return
	}

	post, err := h.postService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "fetch post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "create post")
		return
	}

	var req types.PostInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "create post")
		return
	}

	post, err := h.postService.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "create post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "update post")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "update post")
		return
	}

	var req types.PostInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "update post")
		return
	}

	post, err := h.postService.Update(r.Context(), userID, id, req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "update post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "delete post")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "delete post")
		return
	}

	if err := h.postService.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, h.log, err, "delete post")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted"})
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil(posts []types.Post) []types.Post {
	if posts == nil {
		return []types.Post{}
	}
	return posts
}
