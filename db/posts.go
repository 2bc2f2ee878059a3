package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

// Posts
const (
	sqlInsertPost = `INSERT INTO posts(id, author_id, url, title, source, origin, description, content_type, content, visibility, unlisted, published)
                     VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdatePost = `UPDATE posts SET title = ?, source = ?, origin = ?, description = ?, content_type = ?, content = ?, visibility = ?, unlisted = ?
                     WHERE id = ?`
	sqlSelectPostColumns = `SELECT posts.id, posts.author_id, posts.url, posts.title, posts.source, posts.origin, posts.description,
                            posts.content_type, posts.content, posts.visibility, posts.unlisted, posts.published,
                            (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id),
                            (SELECT COUNT(*) FROM likes WHERE likes.object = posts.url)
                            FROM posts`
	sqlSelectPostById    = sqlSelectPostColumns + ` WHERE posts.id = ?`
	sqlSelectPublicPosts = sqlSelectPostColumns + ` WHERE posts.author_id = ? AND posts.visibility = 'PUB' AND posts.unlisted = 0 ORDER BY posts.published DESC LIMIT ?`
	sqlDeletePost        = `DELETE FROM posts WHERE id = ?`
)

// Comments
const (
	sqlInsertComment        = `INSERT INTO comments(id, post_id, author_id, url, comment, content_type, published) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectCommentsByPost = `SELECT id, post_id, author_id, url, comment, content_type, published FROM comments
                               WHERE post_id = ? ORDER BY published DESC, id ASC LIMIT ? OFFSET ?`
	sqlCountCommentsByPost = `SELECT COUNT(*) FROM comments WHERE post_id = ?`
)

// Likes
const (
	sqlInsertLike          = `INSERT INTO likes(id, author_id, object, summary, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectLikeColumns   = `SELECT id, author_id, object, summary, created_at FROM likes`
	sqlSelectLikesByObject = sqlSelectLikeColumns + ` WHERE object = ? ORDER BY created_at ASC, id ASC`
	sqlSelectLikesByAuthor = sqlSelectLikeColumns + ` WHERE author_id = ? ORDER BY created_at DESC, id ASC`
)

func (q *Queries) CreatePost(ctx context.Context, p *domain.Post) error {
	_, err := q.exec(ctx, sqlInsertPost,
		p.Id.String(),
		p.AuthorId.String(),
		p.URL,
		p.Title,
		p.Source,
		p.Origin,
		p.Description,
		string(p.ContentType),
		p.Content,
		string(p.Visibility),
		p.Unlisted,
		p.Published,
	)
	return err
}

func (q *Queries) UpdatePost(ctx context.Context, p *domain.Post) error {
	return q.execOne(ctx, sqlUpdatePost,
		p.Title,
		p.Source,
		p.Origin,
		p.Description,
		string(p.ContentType),
		p.Content,
		string(p.Visibility),
		p.Unlisted,
		p.Id.String(),
	)
}

func (q *Queries) ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return scanPost(q.q.QueryRowContext(ctx, sqlSelectPostById, id.String()))
}

// ReadPostsByAuthor pages through an author's posts restricted to the given
// visibilities, newest first. Unlisted posts are left out unless asked for.
func (q *Queries) ReadPostsByAuthor(ctx context.Context, authorId uuid.UUID, visible []domain.Visibility, withUnlisted bool, limit, offset int) ([]domain.Post, error) {
	if len(visible) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteString(sqlSelectPostColumns)
	sb.WriteString(` WHERE posts.author_id = ? AND posts.visibility IN (`)
	args := []any{authorId.String()}
	for i, v := range visible {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, string(v))
	}
	sb.WriteString(")")
	if !withUnlisted {
		sb.WriteString(` AND posts.unlisted = 0`)
	}
	sb.WriteString(` ORDER BY posts.published DESC, posts.id ASC LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := q.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// ReadPublicPosts returns the newest listed public posts of an author, for feeds.
func (q *Queries) ReadPublicPosts(ctx context.Context, authorId uuid.UUID, limit int) ([]domain.Post, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectPublicPosts, authorId.String(), limit)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (q *Queries) DeletePost(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, sqlDeletePost, id.String())
}

func (q *Queries) CreateComment(ctx context.Context, c *domain.Comment) error {
	_, err := q.exec(ctx, sqlInsertComment,
		c.Id.String(),
		c.PostId.String(),
		c.AuthorId.String(),
		c.URL,
		c.Comment,
		string(c.ContentType),
		c.Published,
	)
	return err
}

func (q *Queries) ReadCommentsByPost(ctx context.Context, postId uuid.UUID, limit, offset int) ([]domain.Comment, int, error) {
	var total int
	if err := q.q.QueryRowContext(ctx, sqlCountCommentsByPost, postId.String()).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.q.QueryContext(ctx, sqlSelectCommentsByPost, postId.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var ct string
		if err := rows.Scan(&c.Id, &c.PostId, &c.AuthorId, &c.URL, &c.Comment, &ct, &c.Published); err != nil {
			return comments, total, err
		}
		c.ContentType = domain.ContentType(ct)
		comments = append(comments, c)
	}
	return comments, total, rows.Err()
}

func (q *Queries) CreateLike(ctx context.Context, l *domain.Like) error {
	_, err := q.exec(ctx, sqlInsertLike, l.Id.String(), l.AuthorId.String(), l.Object, l.Summary, l.CreatedAt)
	return err
}

func (q *Queries) ReadLikesByObject(ctx context.Context, object string) ([]domain.Like, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectLikesByObject, domain.NormalizeURL(object))
	if err != nil {
		return nil, err
	}
	return collectLikes(rows)
}

func (q *Queries) ReadLikesByAuthor(ctx context.Context, authorId uuid.UUID) ([]domain.Like, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectLikesByAuthor, authorId.String())
	if err != nil {
		return nil, err
	}
	return collectLikes(rows)
}

func scanPost(row scanner) (*domain.Post, error) {
	var p domain.Post
	var ct, vis string
	err := row.Scan(
		&p.Id,
		&p.AuthorId,
		&p.URL,
		&p.Title,
		&p.Source,
		&p.Origin,
		&p.Description,
		&ct,
		&p.Content,
		&vis,
		&p.Unlisted,
		&p.Published,
		&p.CommentCount,
		&p.LikeCount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.ContentType = domain.ContentType(ct)
	p.Visibility = domain.Visibility(vis)
	return &p, nil
}

func collectPosts(rows *sql.Rows) ([]domain.Post, error) {
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return posts, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func collectLikes(rows *sql.Rows) ([]domain.Like, error) {
	defer rows.Close()
	var likes []domain.Like
	for rows.Next() {
		var l domain.Like
		if err := rows.Scan(&l.Id, &l.AuthorId, &l.Object, &l.Summary, &l.CreatedAt); err != nil {
			return likes, err
		}
		likes = append(likes, l)
	}
	return likes, rows.Err()
}
