package secrets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const defaultPort = 5432

var (
	ErrEmptySecret   = errors.New("secret has no string value")
	ErrInvalidSecret = errors.New("secret is not valid JSON")
)

// GetSecretValueAPI is the subset of the Secrets Manager client used here.
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Manager struct {
	client   GetSecretValueAPI
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

func NewManager(client GetSecretValueAPI, logger *zap.Logger) *Manager {
	return &Manager{client: client, attempts: 3, delay: 200 * time.Millisecond, logger: logger}
}

// WithRetry overrides the fetch attempts and initial backoff.
func (m *Manager) WithRetry(attempts uint, delay time.Duration) *Manager {
	m.attempts = attempts
	m.delay = delay
	return m
}

// SecretString fetches the current value of a secret. Missing secrets and
// access errors other than throttling are not retried.
func (m *Manager) SecretString(ctx context.Context, id string) (string, error) {
	var value string
	err := retry.Do(
		func() error {
			out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
			if err != nil {
				return err
			}
			value = aws.ToString(out.SecretString)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Warn("secret fetch failed, retrying",
				zap.String("secret_id", id), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", id, err)
	}
	if value == "" {
		return "", fmt.Errorf("get secret %s: %w", id, ErrEmptySecret)
	}
	return value, nil
}

func retryable(err error) bool {
	var notFound *types.ResourceNotFoundException
	var invalid *types.InvalidParameterException
	var decrypt *types.DecryptionFailure
	switch {
	case errors.As(err, &notFound), errors.As(err, &invalid), errors.As(err, &decrypt):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// ParseDBCredentials reads the managed database secret layout. Both the RDS
// key names (username, dbname) and their short forms (user, database) are accepted.
func ParseDBCredentials(raw string) (domain.DBCredentials, error) {
	if !gjson.Valid(raw) {
		return domain.DBCredentials{}, ErrInvalidSecret
	}
	doc := gjson.Parse(raw)
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := doc.Get(k); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return ""
	}

	creds := domain.DBCredentials{
		Host:     first("host"),
		Database: first("dbname", "database"),
		User:     first("username", "user"),
		Password: first("password"),
		Port:     defaultPort,
	}
	if p := doc.Get("port"); p.Exists() && p.Int() > 0 {
		creds.Port = int(p.Int())
	}

	var missing []string
	for name, v := range map[string]string{"host": creds.Host, "dbname": creds.Database, "username": creds.User, "password": creds.Password} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return domain.DBCredentials{}, fmt.Errorf("secret missing keys: %s", strings.Join(missing, ", "))
	}
	return creds, nil
}

// ParseSalt accepts either a bare string secret or a JSON object with a "salt" key.
func ParseSalt(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if gjson.Valid(trimmed) {
		if v := gjson.Get(trimmed, "salt"); v.Exists() {
			trimmed = v.String()
		} else if strings.HasPrefix(trimmed, "{") {
			return "", errors.New(`salt secret has no "salt" key`)
		}
	}
	if trimmed == "" {
		return "", ErrEmptySecret
	}
	return trimmed, nil
}

func (m *Manager) Salt(ctx context.Context, id string) (string, error) {
	raw, err := m.SecretString(ctx, id)
	if err != nil {
		return "", err
	}
	return ParseSalt(raw)
}

// DBSecret resolves database credentials from a secret on each connect, so a
// rotated password is picked up by the next run.
type DBSecret struct {
	manager  *Manager
	secretID string
}

func NewDBSecret(m *Manager, secretID string) *DBSecret {
	return &DBSecret{manager: m, secretID: secretID}
}

func (s *DBSecret) Credentials(ctx context.Context) (domain.DBCredentials, error) {
	raw, err := s.manager.SecretString(ctx, s.secretID)
	if err != nil {
		return domain.DBCredentials{}, err
	}
	creds, err := ParseDBCredentials(raw)
	if err != nil {
		return domain.DBCredentials{}, fmt.Errorf("parse secret %s: %w", s.secretID, err)
	}
	return creds, nil
}

var _ domain.CredentialSource = (*DBSecret)(nil)
