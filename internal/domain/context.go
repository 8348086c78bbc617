package domain

import (
	"context"
	"time"
)

type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// Provider drives the cloud API for one resource at a time. Attributes
// passed to Create and Update have every ref: value resolved to a provider id.
type Provider interface {
	Create(ctx context.Context, node ResourceNode, attrs Attributes) (string, error)
	Update(ctx context.Context, kind ResourceKind, providerID string, attrs Attributes) error
	Describe(ctx context.Context, kind ResourceKind, providerID string) (Attributes, error)
	Delete(ctx context.Context, kind ResourceKind, providerID string) error
	// Lookup finds an existing resource matching node, by its Name tag or,
	// for associations, by the resolved subnet and route table. It returns
	// ErrNotFound when nothing matches.
	Lookup(ctx context.Context, node ResourceNode, attrs Attributes) (string, error)
}

// StateStore persists one ResourceRecord per logical name. Backend failures
// match ErrStoreUnavailable.
type StateStore interface {
	Get(ctx context.Context, logicalName string) (ResourceRecord, error)
	Put(ctx context.Context, record ResourceRecord) error
	Delete(ctx context.Context, logicalName string) error
	List(ctx context.Context) ([]ResourceRecord, error)
}
