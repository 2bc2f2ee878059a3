package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

const testBase = "http://local.test/"

// setupTestDB creates a migrated in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestAuthor(t *testing.T, db *DB, username string) *domain.Author {
	t.Helper()
	ctx := context.Background()
	acc := &domain.Account{Id: uuid.New(), Username: username, CreatedAt: time.Now().UTC()}
	if err := db.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	author := &domain.Author{Id: uuid.New(), AccountId: acc.Id, DisplayName: username, CreatedAt: time.Now().UTC()}
	author.BindToHost(testBase)
	if err := db.CreateAuthor(ctx, author); err != nil {
		t.Fatalf("CreateAuthor failed: %v", err)
	}
	return author
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestCreateAndReadAuthor(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	author := createTestAuthor(t, db, "alice")

	byId, err := db.ReadAuthorById(ctx, author.Id)
	if err != nil {
		t.Fatalf("ReadAuthorById failed: %v", err)
	}
	if byId.URL != author.URL || byId.DisplayName != "alice" {
		t.Errorf("Unexpected author: %+v", byId)
	}

	byURL, err := db.ReadAuthorByURL(ctx, author.URL+"/")
	if err != nil {
		t.Fatalf("ReadAuthorByURL failed: %v", err)
	}
	if byURL.Id != author.Id {
		t.Errorf("Expected %s, got %s", author.Id, byURL.Id)
	}

	byName, err := db.ReadAuthorByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("ReadAuthorByUsername failed: %v", err)
	}
	if byName.Id != author.Id {
		t.Errorf("Expected %s, got %s", author.Id, byName.Id)
	}
}

func TestReadAuthorNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.ReadAuthorById(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateUsernameIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestAuthor(t, db, "bob")

	acc := &domain.Account{Id: uuid.New(), Username: "bob", CreatedAt: time.Now().UTC()}
	if err := db.CreateAccount(ctx, acc); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	taken, err := db.UsernameTaken(ctx, "bob")
	if err != nil || !taken {
		t.Errorf("Expected username to be taken, got %v %v", taken, err)
	}
}

func TestAuthorWithoutAccountIsRejected(t *testing.T) {
	db := setupTestDB(t)
	author := &domain.Author{Id: uuid.New(), AccountId: uuid.New(), DisplayName: "ghost", URL: "http://x.test/authors/1", Host: "http://x.test/"}
	err := db.CreateAuthor(context.Background(), author)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected foreign key failure as ErrNotFound, got %v", err)
	}
}

func TestFollowerUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	author := createTestAuthor(t, db, "carol")
	remote := "http://remote.test/authors/42"

	f := &domain.Follower{Id: uuid.New(), FolloweeId: author.Id, FollowerURL: remote, CreatedAt: time.Now().UTC()}
	if err := db.CreateFollower(ctx, f); err != nil {
		t.Fatalf("CreateFollower failed: %v", err)
	}
	dup := &domain.Follower{Id: uuid.New(), FolloweeId: author.Id, FollowerURL: remote, CreatedAt: time.Now().UTC()}
	if err := db.CreateFollower(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	if err := db.EnsureFollower(ctx, dup); err != nil {
		t.Errorf("EnsureFollower should ignore duplicates, got %v", err)
	}

	n, err := db.CountFollowers(ctx, author.Id)
	if err != nil || n != 1 {
		t.Errorf("Expected exactly one follower, got %d (%v)", n, err)
	}

	if err := db.DeleteFollower(ctx, author.Id, remote); err != nil {
		t.Fatalf("DeleteFollower failed: %v", err)
	}
	if err := db.DeleteFollower(ctx, author.Id, remote); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFollowingUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	author := createTestAuthor(t, db, "dave")
	remote := "http://remote.test/authors/7"

	if err := db.CreateFollowing(ctx, &domain.Following{Id: uuid.New(), FollowerId: author.Id, FolloweeURL: remote, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateFollowing failed: %v", err)
	}
	err := db.CreateFollowing(ctx, &domain.Following{Id: uuid.New(), FollowerId: author.Id, FolloweeURL: remote, CreatedAt: time.Now().UTC()})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	followings, err := db.ReadFollowings(ctx, author.Id)
	if err != nil || len(followings) != 1 {
		t.Errorf("Expected one following, got %d (%v)", len(followings), err)
	}
}

func TestAcceptFollowOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAuthor(t, db, "alice")
	bob := createTestAuthor(t, db, "bob")

	follow := &domain.Follow{Id: uuid.New(), ActorId: alice.Id, ObjectId: bob.Id, Status: domain.FollowPending, CreatedAt: time.Now().UTC()}
	if err := db.CreateFollow(ctx, follow); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}
	dup := &domain.Follow{Id: uuid.New(), ActorId: alice.Id, ObjectId: bob.Id, Status: domain.FollowPending, CreatedAt: time.Now().UTC()}
	if err := db.CreateFollow(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate follow, got %v", err)
	}

	if err := db.AcceptFollow(ctx, follow.Id); err != nil {
		t.Fatalf("AcceptFollow failed: %v", err)
	}
	if err := db.AcceptFollow(ctx, follow.Id); !errors.Is(err, domain.ErrAlreadyAccepted) {
		t.Errorf("Expected ErrAlreadyAccepted, got %v", err)
	}
	if err := db.AcceptFollow(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	friends, err := db.AreFriends(ctx, bob.Id, alice.Id)
	if err != nil || !friends {
		t.Errorf("Expected alice and bob to be friends, got %v (%v)", friends, err)
	}
	ids, err := db.ReadFriendIds(ctx, bob.Id)
	if err != nil || len(ids) != 1 || ids[0] != alice.Id {
		t.Errorf("Unexpected friend ids %v (%v)", ids, err)
	}

	pending, err := db.ReadFollowsForObject(ctx, bob.Id, domain.FollowPending)
	if err != nil || len(pending) != 0 {
		t.Errorf("Expected no pending follows, got %d (%v)", len(pending), err)
	}
}

func TestInvalidFollowStatusRejected(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestAuthor(t, db, "alice")
	bob := createTestAuthor(t, db, "bob")

	follow := &domain.Follow{Id: uuid.New(), ActorId: alice.Id, ObjectId: bob.Id, Status: "MAYBE", CreatedAt: time.Now().UTC()}
	if err := db.CreateFollow(context.Background(), follow); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected check constraint as ErrValidation, got %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAuthor(t, db, "alice")
	bob := createTestAuthor(t, db, "bob")

	post := &domain.Post{Id: uuid.New(), AuthorId: alice.Id, ContentType: domain.ContentTypePlain, Visibility: domain.VisibilityPublic, Published: time.Now().UTC()}
	post.URL = domain.PostURL(alice.URL, post.Id)
	if err := db.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if err := db.CreateFollow(ctx, &domain.Follow{Id: uuid.New(), ActorId: bob.Id, ObjectId: alice.Id, Status: domain.FollowPending, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}

	if err := db.DeleteAccount(ctx, alice.AccountId); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := db.ReadAuthorById(ctx, alice.Id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected author to be gone, got %v", err)
	}
	if _, err := db.ReadPostById(ctx, post.Id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected post to be gone, got %v", err)
	}
	follows, err := db.ReadFollowsInvolving(ctx, bob.Id)
	if err != nil || len(follows) != 0 {
		t.Errorf("Expected follows to be gone, got %d (%v)", len(follows), err)
	}
}

func TestPostCountsAndVisibilityFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAuthor(t, db, "alice")
	bob := createTestAuthor(t, db, "bob")

	mk := func(vis domain.Visibility, unlisted bool) *domain.Post {
		p := &domain.Post{Id: uuid.New(), AuthorId: alice.Id, ContentType: domain.ContentTypeMarkdown, Visibility: vis, Unlisted: unlisted, Published: time.Now().UTC()}
		p.URL = domain.PostURL(alice.URL, p.Id)
		if err := db.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
		return p
	}
	public := mk(domain.VisibilityPublic, false)
	mk(domain.VisibilityFriends, false)
	mk(domain.VisibilityPrivate, false)
	mk(domain.VisibilityPublic, true)

	comment := &domain.Comment{Id: uuid.New(), PostId: public.Id, AuthorId: bob.Id, Comment: "nice", ContentType: domain.ContentTypePlain, Published: time.Now().UTC()}
	comment.URL = domain.CommentURL(public.URL, comment.Id)
	if err := db.CreateComment(ctx, comment); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	if err := db.CreateLike(ctx, &domain.Like{Id: uuid.New(), AuthorId: bob.Id, Object: public.URL, Summary: "bob Likes your post", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateLike failed: %v", err)
	}

	got, err := db.ReadPostById(ctx, public.Id)
	if err != nil {
		t.Fatalf("ReadPostById failed: %v", err)
	}
	if got.CommentCount != 1 || got.LikeCount != 1 {
		t.Errorf("Expected 1 comment and 1 like, got %d and %d", got.CommentCount, got.LikeCount)
	}

	tests := []struct {
		name     string
		visible  []domain.Visibility
		unlisted bool
		want     int
	}{
		{"public only", []domain.Visibility{domain.VisibilityPublic}, false, 1},
		{"friends view", []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends}, false, 2},
		{"owner view", []domain.Visibility{domain.VisibilityPublic, domain.VisibilityFriends, domain.VisibilityPrivate}, true, 4},
		{"nothing", nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := db.ReadPostsByAuthor(ctx, alice.Id, tt.visible, tt.unlisted, 50, 0)
			if err != nil {
				t.Fatalf("ReadPostsByAuthor failed: %v", err)
			}
			if len(posts) != tt.want {
				t.Errorf("Expected %d posts, got %d", tt.want, len(posts))
			}
		})
	}
}

func TestLikeUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAuthor(t, db, "alice")
	object := "http://remote.test/authors/1/posts/2"

	if err := db.CreateLike(ctx, &domain.Like{Id: uuid.New(), AuthorId: alice.Id, Object: object, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateLike failed: %v", err)
	}
	err := db.CreateLike(ctx, &domain.Like{Id: uuid.New(), AuthorId: alice.Id, Object: object, CreatedAt: time.Now().UTC()})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	liked, err := db.ReadLikesByAuthor(ctx, alice.Id)
	if err != nil || len(liked) != 1 {
		t.Errorf("Expected one like, got %d (%v)", len(liked), err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(q *Queries) error {
		acc := &domain.Account{Id: uuid.New(), Username: "rollback", CreatedAt: time.Now().UTC()}
		if err := q.CreateAccount(ctx, acc); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if _, err := db.ReadAccountByUsername(ctx, "rollback"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected account to be rolled back, got %v", err)
	}
}

func TestDeliveryQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAuthor(t, db, "alice")
	now := time.Now().UTC()

	due := &domain.DeliveryItem{Id: uuid.New(), InboxURL: "http://remote.test/authors/1/inbox", Payload: `{}`, SignerAuthorId: alice.Id, NextRetryAt: now.Add(-time.Minute), CreatedAt: now}
	later := &domain.DeliveryItem{Id: uuid.New(), InboxURL: "http://remote.test/authors/2/inbox", Payload: `{}`, SignerAuthorId: alice.Id, NextRetryAt: now.Add(time.Hour), CreatedAt: now}
	for _, item := range []*domain.DeliveryItem{due, later} {
		if err := db.EnqueueDelivery(ctx, item); err != nil {
			t.Fatalf("EnqueueDelivery failed: %v", err)
		}
	}

	pending, err := db.ReadPendingDeliveries(ctx, now, 50)
	if err != nil {
		t.Fatalf("ReadPendingDeliveries failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Id != due.Id {
		t.Fatalf("Expected only the due item, got %+v", pending)
	}

	if err := db.UpdateDeliveryAttempt(ctx, due.Id, 1, now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateDeliveryAttempt failed: %v", err)
	}
	pending, _ = db.ReadPendingDeliveries(ctx, now, 50)
	if len(pending) != 0 {
		t.Errorf("Expected no due items after reschedule, got %d", len(pending))
	}

	if err := db.DeleteDelivery(ctx, due.Id); err != nil {
		t.Fatalf("DeleteDelivery failed: %v", err)
	}
	n, _ := db.CountDeliveries(ctx)
	if n != 1 {
		t.Errorf("Expected 1 queued delivery, got %d", n)
	}
}

func TestInboxItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestAuthor(t, db, "alice")

	for i := 0; i < 3; i++ {
		item := &domain.InboxItem{Id: uuid.New(), AuthorId: alice.Id, Type: "post", Payload: `{"type":"post"}`, ReceivedAt: time.Now().UTC()}
		if err := db.CreateInboxItem(ctx, item); err != nil {
			t.Fatalf("CreateInboxItem failed: %v", err)
		}
	}
	items, total, err := db.ReadInboxItems(ctx, alice.Id, 2, 0)
	if err != nil {
		t.Fatalf("ReadInboxItems failed: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("Expected 2 of 3 items, got %d of %d", len(items), total)
	}
	if err := db.ClearInbox(ctx, alice.Id); err != nil {
		t.Fatalf("ClearInbox failed: %v", err)
	}
	_, total, _ = db.ReadInboxItems(ctx, alice.Id, 2, 0)
	if total != 0 {
		t.Errorf("Expected empty inbox, got %d", total)
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		page, size            int
		wantLimit, wantOffset int
	}{
		{0, 0, 50, 0},
		{2, 10, 10, 10},
		{3, 1000, 500, 1000},
	}
	for _, tt := range tests {
		limit, offset := Page(tt.page, tt.size)
		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Errorf("Page(%d, %d) = %d, %d; want %d, %d", tt.page, tt.size, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
