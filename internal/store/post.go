package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quillpress/apiserver/types"
)

// postColumns selects a post joined with its author's public fields.
// Every query aliases the post relation as p and users as u.
const postColumns = `
		p.id, p.title, p.content, p.published, p.image_url, p.author_id,
		p.created_at, p.updated_at, u.name, u.email`

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) ListPublished(ctx context.Context) ([]types.Post, error) {
	const query = `
		SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.published
		ORDER BY p.id`
	return r.list(ctx, query)
}

func (r *PostRepository) ListByAuthor(ctx context.Context, authorID int) ([]types.Post, error) {
	const query = `
		SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.author_id = $1
		ORDER BY p.id`
	return r.list(ctx, query, authorID)
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1`
	return scanPostRow(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a post owned by authorID and returns it joined with its
// author. A nil Published stores false and an empty ImageURL stores NULL.
func (r *PostRepository) Create(ctx context.Context, authorID int, input types.PostInput) (types.Post, error) {
	published := false
	if input.Published != nil {
		published = *input.Published
	}

	const query = `
		WITH p AS (
			INSERT INTO posts (title, content, published, image_url, author_id, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4::text, ''), $5, $6, $6)
			RETURNING *
		)
		SELECT` + postColumns + `
		FROM p
		JOIN users u ON u.id = p.author_id`
	return scanPostRow(r.db.QueryRowContext(
		ctx,
		query,
		input.Title,
		input.Content,
		published,
		input.ImageURL,
		authorID,
		time.Now(),
	))
}

// UpdateOwned rewrites a post only if it belongs to authorID. The owner
// filter is part of the UPDATE itself. A missing post and a post owned by
// someone else both yield ErrNotFound.
//
// A nil Published keeps the stored value; an empty ImageURL keeps the
// stored reference.
func (r *PostRepository) UpdateOwned(ctx context.Context, authorID, id int, input types.PostInput) (types.Post, error) {
	const query = `
		WITH p AS (
			UPDATE posts
			SET title = $1,
				content = $2,
				published = COALESCE($3::boolean, published),
				image_url = COALESCE(NULLIF($4::text, ''), image_url),
				updated_at = $5
			WHERE id = $6 AND author_id = $7
			RETURNING *
		)
		SELECT` + postColumns + `
		FROM p
		JOIN users u ON u.id = p.author_id`
	return scanPostRow(r.db.QueryRowContext(
		ctx,
		query,
		input.Title,
		input.Content,
		input.Published,
		input.ImageURL,
		time.Now(),
		id,
		authorID,
	))
}

// DeleteOwned removes a post only if it belongs to authorID, with the same
// not-found semantics as UpdateOwned.
func (r *PostRepository) DeleteOwned(ctx context.Context, authorID, id int) error {
	const query = `DELETE FROM posts WHERE id = $1 AND author_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, authorID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]types.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostRow(row *sql.Row) (types.Post, error) {
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var imageURL sql.NullString
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.Published,
		&imageURL,
		&post.AuthorID,
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.Author.Name,
		&post.Author.Email,
	); err != nil {
		return types.Post{}, err
	}
	if imageURL.Valid {
		post.ImageURL = &imageURL.String
	}
	return post, nil
}
