package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
)

// OutboxStore is what the outbox writes to. Callers pass a transaction-bound store so
// queued deliveries commit together with the write that caused them.
type OutboxStore interface {
	AuthorReader
	EnqueueDelivery(ctx context.Context, item *domain.DeliveryItem) error
	CreateInboxItem(ctx context.Context, item *domain.InboxItem) error
}

// Outbox routes objects produced by local authors: other local authors get an inbox
// item right away, remote ones get a queued delivery.
type Outbox struct {
	resolver *Resolver
	federate bool
	now      func() time.Time
}

func NewOutbox(resolver *Resolver, federate bool) *Outbox {
	return &Outbox{resolver: resolver, federate: federate, now: time.Now}
}

// SendFollow queues a follow request to a remote object's inbox.
func (o *Outbox) SendFollow(ctx context.Context, store OutboxStore, f *domain.Follow, actor, object *domain.Author) error {
	return o.send(ctx, store, actor, object.URL, TypeFollow, FollowToWire(f, actor, object))
}

// SendAccept tells the requesting actor that object accepted the follow.
func (o *Outbox) SendAccept(ctx context.Context, store OutboxStore, f *domain.Follow, actor, object *domain.Author) error {
	return o.send(ctx, store, object, actor.URL, TypeAccept, AcceptToWire(f, actor, object))
}

// SendUndo withdraws a follow from the object's server.
func (o *Outbox) SendUndo(ctx context.Context, store OutboxStore, f *domain.Follow, actor, object *domain.Author) error {
	return o.send(ctx, store, actor, object.URL, TypeUndo, UndoToWire(f, actor, object))
}

// SendPost pushes a post to the given followers of its author.
func (o *Outbox) SendPost(ctx context.Context, store OutboxStore, p *domain.Post, author *domain.Author, followers []domain.Follower) error {
	if !p.Syndicated() {
		return nil
	}
	obj := PostToWire(p, author)
	queued := 0
	for _, f := range followers {
		if err := o.send(ctx, store, author, f.FollowerURL, TypePost, obj); err != nil {
			return err
		}
		queued++
	}
	if queued > 0 {
		logger := logging.Ctx(ctx)
		logger.Debug().Str("post_id", p.Id.String()).Int("followers", queued).Msg("routed post to followers")
	}
	return nil
}

// SendLike delivers a like to the author of the liked object when that author lives
// elsewhere.
func (o *Outbox) SendLike(ctx context.Context, store OutboxStore, l *domain.Like, author *domain.Author, objectAuthorURL string) error {
	return o.send(ctx, store, author, objectAuthorURL, TypeLike, LikeToWire(l, author))
}

func (o *Outbox) send(ctx context.Context, store OutboxStore, from *domain.Author, toAuthorURL, typ string, obj any) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typ, err)
	}

	ident, err := o.resolver.Resolve(ctx, store, toAuthorURL)
	if err != nil {
		return err
	}
	now := o.now().UTC()

	if ident.Kind == IdentityLocal {
		item := &domain.InboxItem{
			Id:         uuid.New(),
			AuthorId:   ident.Author.Id,
			Type:       typ,
			Payload:    string(payload),
			ReceivedAt: now,
		}
		if err := store.CreateInboxItem(ctx, item); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return nil
	}

	if !o.federate {
		return nil
	}
	return store.EnqueueDelivery(ctx, &domain.DeliveryItem{
		Id:             uuid.New(),
		InboxURL:       InboxURL(ident.URL),
		Payload:        string(payload),
		SignerAuthorId: from.Id,
		NextRetryAt:    now,
		CreatedAt:      now,
	})
}
