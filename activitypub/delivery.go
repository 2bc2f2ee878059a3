package activitypub

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
	"github.com/socialdistance/socialdistance/util"
)

const (
	deliveryBatchSize   = 50
	maxDeliveryAttempts = 10
)

var backoffMinutes = []int{1, 5, 15, 60, 240, 1440}

// DeliveryStore is the queue interface the worker runs against.
type DeliveryStore interface {
	ReadPendingDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryItem, error)
	UpdateDeliveryAttempt(ctx context.Context, id uuid.UUID, attempts int, nextRetry time.Time) error
	DeleteDelivery(ctx context.Context, id uuid.UUID) error
	ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error)
	ReadAccountById(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// Signer is the key material for signing a delivery.
type Signer struct {
	Key   *rsa.PrivateKey
	KeyID string
}

// DeliveryWorker drains the delivery queue.
type DeliveryWorker struct {
	store    DeliveryStore
	client   *Client
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewDeliveryWorker(store DeliveryStore, client *Client, interval time.Duration) *DeliveryWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &DeliveryWorker{
		store:    store,
		client:   client,
		interval: interval,
		logger:   logging.Component("delivery"),
		now:      time.Now,
	}
}

// Run processes the queue on every tick until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("delivery worker started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("delivery worker stopped")
			return
		case <-ticker.C:
			w.ProcessQueue(ctx)
		}
	}
}

// ProcessQueue delivers one batch of due items and returns how many succeeded.
func (w *DeliveryWorker) ProcessQueue(ctx context.Context) int {
	items, err := w.store.ReadPendingDeliveries(ctx, w.now().UTC(), deliveryBatchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to read delivery queue")
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	w.logger.Debug().Int("count", len(items)).Msg("processing pending deliveries")

	delivered := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		err := w.deliver(ctx, &item)
		if err == nil {
			w.logger.Info().Str("inbox", item.InboxURL).Msg("delivered")
			if err := w.store.DeleteDelivery(ctx, item.Id); err != nil {
				w.logger.Error().Err(err).Str("delivery_id", item.Id.String()).Msg("failed to dequeue")
			}
			delivered++
			continue
		}

		item.Attempts++
		if item.Attempts >= maxDeliveryAttempts {
			w.logger.Warn().Err(err).Str("inbox", item.InboxURL).Int("attempts", item.Attempts).Msg("giving up on delivery")
			if err := w.store.DeleteDelivery(ctx, item.Id); err != nil {
				w.logger.Error().Err(err).Str("delivery_id", item.Id.String()).Msg("failed to dequeue")
			}
			continue
		}
		wait := Backoff(item.Attempts)
		w.logger.Warn().Err(err).Str("inbox", item.InboxURL).Int("attempts", item.Attempts).Dur("retry_in", wait).Msg("delivery failed")
		if err := w.store.UpdateDeliveryAttempt(ctx, item.Id, item.Attempts, w.now().UTC().Add(wait)); err != nil {
			w.logger.Error().Err(err).Str("delivery_id", item.Id.String()).Msg("failed to reschedule")
		}
	}
	return delivered
}

// Backoff is the wait before retry number attempts.
func Backoff(attempts int) time.Duration {
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(backoffMinutes) {
		i = len(backoffMinutes) - 1
	}
	return time.Duration(backoffMinutes[i]) * time.Minute
}

func (w *DeliveryWorker) deliver(ctx context.Context, item *domain.DeliveryItem) error {
	signer, err := w.signerFor(ctx, item.SignerAuthorId)
	if err != nil {
		return err
	}
	return w.client.Deliver(ctx, item.InboxURL, []byte(item.Payload), signer)
}

// signerFor loads the author's key. Authors without a key deliver unsigned.
func (w *DeliveryWorker) signerFor(ctx context.Context, authorId uuid.UUID) (*Signer, error) {
	author, err := w.store.ReadAuthorById(ctx, authorId)
	if err != nil {
		return nil, err
	}
	acc, err := w.store.ReadAccountById(ctx, author.AccountId)
	if err != nil {
		return nil, err
	}
	if acc.WebPrivateKey == "" {
		return nil, nil
	}
	key, err := util.ParsePrivateKey(acc.WebPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &Signer{Key: key, KeyID: KeyID(author.URL)}, nil
}
