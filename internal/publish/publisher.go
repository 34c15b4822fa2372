package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/qivr/analytics-etl/internal/encode"
	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
)

var ErrNilBatch = errors.New("nothing to publish")

// Publisher writes encoded batches to date-partitioned keys. The key for a
// (domain, logical date) pair never changes, so a rerun overwrites the
// previous object instead of adding a second one.
type Publisher struct {
	store    domain.ObjectStore
	bucket   string
	prefix   string
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

type Option func(*Publisher)

// WithRetry sets the number of put attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(p *Publisher) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.delay = delay
	}
}

func NewPublisher(store domain.ObjectStore, bucket, prefix string, logger *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		bucket:   bucket,
		prefix:   prefix,
		attempts: defaultAttempts,
		delay:    defaultDelay,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns [prefix/]{domain}/{partition}/{domain}.{ext}.
func (p *Publisher) Key(d domain.Domain, partition, ext string) string {
	name := string(d) + "." + ext
	if p.prefix == "" {
		return path.Join(string(d), partition, name)
	}
	return path.Join(p.prefix, string(d), partition, name)
}

// Publish puts the batch and returns its fully-qualified location.
func (p *Publisher) Publish(ctx context.Context, d domain.Domain, w domain.Window, b *encode.Batch) (string, error) {
	if b == nil {
		return "", ErrNilBatch
	}
	in := domain.PutObjectInput{
		Bucket:          p.bucket,
		Key:             p.Key(d, w.Partition(), b.Extension),
		Body:            b.Body,
		ContentType:     b.ContentType,
		ContentEncoding: b.ContentEncoding,
	}

	var location string
	err := retry.Do(
		func() error {
			loc, err := p.store.Put(ctx, in)
			if err != nil {
				return err
			}
			location = loc
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("object put failed, retrying",
				zap.String("domain", string(d)),
				zap.String("key", in.Key),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", in.Key, err)
	}

	p.logger.Info("published batch",
		zap.String("domain", string(d)),
		zap.String("location", location),
		zap.Int("records", b.Records),
		zap.Int("bytes", len(b.Body)))
	return location, nil
}
