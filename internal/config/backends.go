package config

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/state"
)

// AWSConfig loads the default credential chain for the configured region
// and profile.
func (c Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the configured backend for one topology. awsCfg is only
// called for the s3 backend. The returned closer releases connections.
func (c Config) OpenStore(ctx context.Context, topology string, awsCfg func(context.Context) (aws.Config, error)) (domain.StateStore, io.Closer, error) {
	switch c.State.Backend {
	case BackendMemory:
		return state.NewMemoryStore(), nopCloser{}, nil
	case BackendFile:
		return state.NewFileStore(c.State.Path, topology), nopCloser{}, nil
	case BackendS3:
		cfg, err := awsCfg(ctx)
		if err != nil {
			return nil, nil, err
		}
		return state.NewS3Store(s3.NewFromConfig(cfg), c.State.Bucket, c.State.Prefix, topology), nopCloser{}, nil
	case BackendPostgres:
		store, err := state.OpenPostgres(ctx, c.State.DSN, topology)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown state backend %q", c.State.Backend)
}
