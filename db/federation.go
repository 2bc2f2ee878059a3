package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

// Inbox
const (
	sqlInsertInboxItem  = `INSERT INTO inbox_items(id, author_id, type, payload, received_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectInboxItems = `SELECT id, author_id, type, payload, received_at FROM inbox_items
                           WHERE author_id = ? ORDER BY received_at DESC, id ASC LIMIT ? OFFSET ?`
	sqlCountInboxItems = `SELECT COUNT(*) FROM inbox_items WHERE author_id = ?`
	sqlClearInbox      = `DELETE FROM inbox_items WHERE author_id = ?`
)

// Delivery Queue queries
const (
	sqlInsertDeliveryQueue = `INSERT INTO delivery_queue(id, inbox_url, payload, signer_author_id, attempts, next_retry_at, created_at)
                              VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingDeliveries = `SELECT id, inbox_url, payload, signer_author_id, attempts, next_retry_at, created_at FROM delivery_queue
                                  WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdateDeliveryAttempt = `UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteDelivery        = `DELETE FROM delivery_queue WHERE id = ?`
	sqlCountDeliveries       = `SELECT COUNT(*) FROM delivery_queue`
)

func (q *Queries) CreateInboxItem(ctx context.Context, item *domain.InboxItem) error {
	_, err := q.exec(ctx, sqlInsertInboxItem, item.Id.String(), item.AuthorId.String(), item.Type, item.Payload, item.ReceivedAt)
	return err
}

func (q *Queries) ReadInboxItems(ctx context.Context, authorId uuid.UUID, limit, offset int) ([]domain.InboxItem, int, error) {
	var total int
	if err := q.q.QueryRowContext(ctx, sqlCountInboxItems, authorId.String()).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.q.QueryContext(ctx, sqlSelectInboxItems, authorId.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []domain.InboxItem
	for rows.Next() {
		var item domain.InboxItem
		if err := rows.Scan(&item.Id, &item.AuthorId, &item.Type, &item.Payload, &item.ReceivedAt); err != nil {
			return items, total, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (q *Queries) ClearInbox(ctx context.Context, authorId uuid.UUID) error {
	_, err := q.exec(ctx, sqlClearInbox, authorId.String())
	return err
}

func (q *Queries) EnqueueDelivery(ctx context.Context, item *domain.DeliveryItem) error {
	_, err := q.exec(ctx, sqlInsertDeliveryQueue,
		item.Id.String(),
		item.InboxURL,
		item.Payload,
		item.SignerAuthorId.String(),
		item.Attempts,
		item.NextRetryAt,
		item.CreatedAt,
	)
	return err
}

// ReadPendingDeliveries returns up to limit items that are due at now.
func (q *Queries) ReadPendingDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryItem, error) {
	rows, err := q.q.QueryContext(ctx, sqlSelectPendingDeliveries, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DeliveryItem
	for rows.Next() {
		var item domain.DeliveryItem
		if err := rows.Scan(&item.Id, &item.InboxURL, &item.Payload, &item.SignerAuthorId, &item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (q *Queries) UpdateDeliveryAttempt(ctx context.Context, id uuid.UUID, attempts int, nextRetry time.Time) error {
	return q.execOne(ctx, sqlUpdateDeliveryAttempt, attempts, nextRetry, id.String())
}

func (q *Queries) DeleteDelivery(ctx context.Context, id uuid.UUID) error {
	_, err := q.exec(ctx, sqlDeleteDelivery, id.String())
	return err
}

func (q *Queries) CountDeliveries(ctx context.Context) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, sqlCountDeliveries).Scan(&n)
	return n, err
}
