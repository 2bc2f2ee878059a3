package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

// Followers and followings
const (
	sqlInsertFollower       = `INSERT INTO followers(id, followee_id, follower_url, created_at) VALUES (?, ?, ?, ?)`
	sqlInsertFollowerIgnore = `INSERT INTO followers(id, followee_id, follower_url, created_at) VALUES (?, ?, ?, ?)
                               ON CONFLICT(followee_id, follower_url) DO NOTHING`
	sqlSelectFollower            = `SELECT id, followee_id, follower_url, created_at FROM followers WHERE followee_id = ? AND follower_url = ?`
	sqlSelectFollowersByFollowee = `SELECT id, followee_id, follower_url, created_at FROM followers
                                    WHERE followee_id = ? ORDER BY created_at ASC, id ASC`
	sqlCountFollowers = `SELECT COUNT(*) FROM followers WHERE followee_id = ?`
	sqlDeleteFollower = `DELETE FROM followers WHERE followee_id = ? AND follower_url = ?`

	sqlInsertFollowing       = `INSERT INTO followings(id, follower_id, followee_url, created_at) VALUES (?, ?, ?, ?)`
	sqlInsertFollowingIgnore = `INSERT INTO followings(id, follower_id, followee_url, created_at) VALUES (?, ?, ?, ?)
                                ON CONFLICT(follower_id, followee_url) DO NOTHING`
	sqlSelectFollowing            = `SELECT id, follower_id, followee_url, created_at FROM followings WHERE follower_id = ? AND followee_url = ?`
	sqlSelectFollowingsByFollower = `SELECT id, follower_id, followee_url, created_at FROM followings
                                     WHERE follower_id = ? ORDER BY created_at ASC, id ASC`
	sqlDeleteFollowing = `DELETE FROM followings WHERE follower_id = ? AND followee_url = ?`
)

// Follow requests
const (
	sqlInsertFollow                 = `INSERT INTO follows(id, actor_id, object_id, status, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectFollowColumns          = `SELECT id, actor_id, object_id, status, summary, created_at FROM follows`
	sqlSelectFollowById             = sqlSelectFollowColumns + ` WHERE id = ?`
	sqlSelectFollowByPair           = sqlSelectFollowColumns + ` WHERE actor_id = ? AND object_id = ?`
	sqlSelectFollowsForObject       = sqlSelectFollowColumns + ` WHERE object_id = ? ORDER BY created_at DESC, id ASC`
	sqlSelectFollowsForObjectStatus = sqlSelectFollowColumns + ` WHERE object_id = ? AND status = ? ORDER BY created_at DESC, id ASC`
	sqlSelectFollowsInvolving       = sqlSelectFollowColumns + ` WHERE (object_id = ? OR actor_id = ?) ORDER BY created_at DESC, id ASC`
	sqlAcceptFollow                 = `UPDATE follows SET status = 'ACCEPTED' WHERE id = ? AND status = 'PENDING'`
	sqlDeleteFollow                 = `DELETE FROM follows WHERE id = ?`
	sqlSelectFriendIds              = `SELECT object_id FROM follows WHERE actor_id = ? AND status = 'ACCEPTED'
                          UNION
                          SELECT actor_id FROM follows WHERE object_id = ? AND status = 'ACCEPTED'`
	sqlCountAcceptedBetween = `SELECT COUNT(*) FROM follows WHERE status = 'ACCEPTED'
                               AND ((actor_id = ? AND object_id = ?) OR (actor_id = ? AND object_id = ?))`
)

func (q *Queries) CreateFollower(ctx context.Context, f *domain.Follower) error {
	_, err := q.exec(ctx, sqlInsertFollower, f.Id.String(), f.FolloweeId.String(), f.FollowerURL, f.CreatedAt)
	return err
}

// EnsureFollower inserts the edge unless it already exists.
func (q *Queries) EnsureFollower(ctx context.Context, f *domain.Follower) error {
	_, err := q.exec(ctx, sqlInsertFollowerIgnore, f.Id.String(), f.FolloweeId.String(), f.FollowerURL, f.CreatedAt)
	return err
}

func (q *Queries) ReadFollower(ctx context.Context, followeeId uuid.UUID, followerURL string) (*domain.Follower, error) {
	var f domain.Follower
	err := q.q.QueryRowContext(ctx, sqlSelectFollower, followeeId.String(), followerURL).
		Scan(&f.Id, &f.FolloweeId, &f.FollowerURL, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("follower: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *Queries) ReadFollowers(ctx context.Context, followeeId uuid.UUID) ([]domain.Follower, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectFollowersByFollowee, followeeId.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var followers []domain.Follower
	for rows.Next() {
		var f domain.Follower
		if err := rows.Scan(&f.Id, &f.FolloweeId, &f.FollowerURL, &f.CreatedAt); err != nil {
			return followers, err
		}
		followers = append(followers, f)
	}
	return followers, rows.Err()
}

func (q *Queries) CountFollowers(ctx context.Context, followeeId uuid.UUID) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, sqlCountFollowers, followeeId.String()).Scan(&n)
	return n, err
}

func (q *Queries) DeleteFollower(ctx context.Context, followeeId uuid.UUID, followerURL string) error {
	return q.execOne(ctx, sqlDeleteFollower, followeeId.String(), followerURL)
}

// DeleteFollowerIfExists is DeleteFollower without the not-found error.
func (q *Queries) DeleteFollowerIfExists(ctx context.Context, followeeId uuid.UUID, followerURL string) error {
	_, err := q.exec(ctx, sqlDeleteFollower, followeeId.String(), followerURL)
	return err
}

func (q *Queries) CreateFollowing(ctx context.Context, f *domain.Following) error {
	_, err := q.exec(ctx, sqlInsertFollowing, f.Id.String(), f.FollowerId.String(), f.FolloweeURL, f.CreatedAt)
	return err
}

func (q *Queries) EnsureFollowing(ctx context.Context, f *domain.Following) error {
	_, err := q.exec(ctx, sqlInsertFollowingIgnore, f.Id.String(), f.FollowerId.String(), f.FolloweeURL, f.CreatedAt)
	return err
}

func (q *Queries) ReadFollowing(ctx context.Context, followerId uuid.UUID, followeeURL string) (*domain.Following, error) {
	var f domain.Following
	err := q.q.QueryRowContext(ctx, sqlSelectFollowing, followerId.String(), followeeURL).
		Scan(&f.Id, &f.FollowerId, &f.FolloweeURL, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("following: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *Queries) ReadFollowings(ctx context.Context, followerId uuid.UUID) ([]domain.Following, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectFollowingsByFollower, followerId.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var followings []domain.Following
	for rows.Next() {
		var f domain.Following
		if err := rows.Scan(&f.Id, &f.FollowerId, &f.FolloweeURL, &f.CreatedAt); err != nil {
			return followings, err
		}
		followings = append(followings, f)
	}
	return followings, rows.Err()
}

func (q *Queries) DeleteFollowing(ctx context.Context, followerId uuid.UUID, followeeURL string) error {
	return q.execOne(ctx, sqlDeleteFollowing, followerId.String(), followeeURL)
}

func (q *Queries) DeleteFollowingIfExists(ctx context.Context, followerId uuid.UUID, followeeURL string) error {
	_, err := q.exec(ctx, sqlDeleteFollowing, followerId.String(), followeeURL)
	return err
}

func (q *Queries) CreateFollow(ctx context.Context, f *domain.Follow) error {
	_, err := q.exec(ctx, sqlInsertFollow,
		f.Id.String(),
		f.ActorId.String(),
		f.ObjectId.String(),
		string(f.Status),
		f.Summary,
		f.CreatedAt,
	)
	return err
}

func (q *Queries) ReadFollowById(ctx context.Context, id uuid.UUID) (*domain.Follow, error) {
	return scanFollow(q.q.QueryRowContext(ctx, sqlSelectFollowById, id.String()))
}

func (q *Queries) ReadFollowByPair(ctx context.Context, actorId, objectId uuid.UUID) (*domain.Follow, error) {
	return scanFollow(q.q.QueryRowContext(ctx, sqlSelectFollowByPair, actorId.String(), objectId.String()))
}

// ReadFollowsForObject lists requests sent to objectId, optionally narrowed to one status.
func (q *Queries) ReadFollowsForObject(ctx context.Context, objectId uuid.UUID, status domain.FollowStatus) ([]domain.Follow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = q.q.QueryContext(ctx, sqlSelectFollowsForObject, objectId.String())
	} else {
		rows, err = q.q.QueryContext(ctx, sqlSelectFollowsForObjectStatus, objectId.String(), string(status))
	}
	if err != nil {
		return nil, err
	}
	return collectFollows(rows)
}

// ReadFollowsInvolving lists requests where authorId is the actor or the object.
func (q *Queries) ReadFollowsInvolving(ctx context.Context, authorId uuid.UUID) ([]domain.Follow, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectFollowsInvolving, authorId.String(), authorId.String())
	if err != nil {
		return nil, err
	}
	return collectFollows(rows)
}

// AcceptFollow flips a PENDING follow to ACCEPTED. It reports ErrAlreadyAccepted when
// the row exists but is no longer pending.
func (q *Queries) AcceptFollow(ctx context.Context, id uuid.UUID) error {
	err := q.execOne(ctx, sqlAcceptFollow, id.String())
	if errors.Is(err, domain.ErrNotFound) {
		if _, rerr := q.ReadFollowById(ctx, id); rerr != nil {
			return rerr
		}
		return domain.ErrAlreadyAccepted
	}
	return err
}

func (q *Queries) DeleteFollow(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, sqlDeleteFollow, id.String())
}

// ReadFriendIds returns the authors with an accepted follow in either direction.
func (q *Queries) ReadFriendIds(ctx context.Context, authorId uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectFriendIds, authorId.String(), authorId.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, sqlCountAcceptedBetween, a.String(), b.String(), b.String(), a.String()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanFollow(row scanner) (*domain.Follow, error) {
	var f domain.Follow
	var status string
	err := row.Scan(&f.Id, &f.ActorId, &f.ObjectId, &status, &f.Summary, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("follow: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	f.Status = domain.FollowStatus(status)
	return &f, nil
}

func collectFollows(rows *sql.Rows) ([]domain.Follow, error) {
	defer rows.Close()
	var follows []domain.Follow
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return follows, err
		}
		follows = append(follows, *f)
	}
	return follows, rows.Err()
}
