package domain

import (
	"context"
	"fmt"
)

// DBCredentials are the connection parameters for the read-only operational store.
type DBCredentials struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// String never includes the password.
func (c DBCredentials) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Database)
}

type CredentialSource interface {
	Credentials(ctx context.Context) (DBCredentials, error)
}

type TenantSource interface {
	ExtractTenants(ctx context.Context, w Window) ([]TenantRow, error)
}

type UsageSource interface {
	ExtractUsage(ctx context.Context, w Window) ([]UsageRow, error)
}

type OutcomeSource interface {
	ExtractOutcomes(ctx context.Context, w Window) ([]OutcomeObservation, error)
}

// Session is a run-scoped, read-only handle on the operational store.
// Close must be called exactly once on every exit path.
type Session interface {
	TenantSource
	UsageSource
	OutcomeSource
	// Ping reports whether the store is still reachable.
	Ping(ctx context.Context) error
	Close()
}

type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

type PutObjectInput struct {
	Bucket          string
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// ObjectStore writes one object and returns its fully-qualified location.
type ObjectStore interface {
	Put(ctx context.Context, in PutObjectInput) (string, error)
}
