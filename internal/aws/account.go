package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/eleven-am/netform/internal/domain"
)

// STSAPI is the subset of the STS client a Session needs.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the principal the provider acts as.
type Identity struct {
	Account string
	ARN     string
}

// Session resolves the AWS config used by the provider and the S3 state
// backend, assuming roleARN first when one is set. Assumed credentials are
// reused until five minutes before they expire.
type Session struct {
	baseConfig  aws.Config
	roleARN     string
	sessionName string
	stsClient   STSAPI
	now         func() time.Time

	mu     sync.Mutex
	creds  *domain.AWSCredentials
	client *Client
}

func NewSession(cfg aws.Config, roleARN string) *Session {
	return NewSessionWithAPI(cfg, roleARN, sts.NewFromConfig(cfg))
}

func NewSessionWithAPI(cfg aws.Config, roleARN string, api STSAPI) *Session {
	return &Session{
		baseConfig:  cfg,
		roleARN:     roleARN,
		sessionName: "netform",
		stsClient:   api,
		now:         time.Now,
	}
}

func (s *Session) Region() string {
	return s.baseConfig.Region
}

func (s *Session) fresh() bool {
	return s.creds != nil && s.now().Add(5*time.Minute).Before(s.creds.Expiration)
}

// Config returns the effective config. Without a role it is the base config.
func (s *Session) Config(ctx context.Context) (aws.Config, error) {
	if s.roleARN == "" {
		return s.baseConfig, nil
	}
	creds, err := s.assumeRole(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	cfg := s.baseConfig.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID,
		creds.SecretAccessKey,
		creds.SessionToken,
	)
	return cfg, nil
}

func (s *Session) assumeRole(ctx context.Context) (domain.AWSCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh() {
		return *s.creds, nil
	}

	out, err := s.stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(s.roleARN),
		RoleSessionName: aws.String(s.sessionName),
		DurationSeconds: aws.Int32(3600),
	})
	if err != nil {
		return domain.AWSCredentials{}, fmt.Errorf("assume role %s: %w", s.roleARN, err)
	}
	if out.Credentials == nil {
		return domain.AWSCredentials{}, fmt.Errorf("assume role %s: no credentials returned", s.roleARN)
	}

	creds := domain.AWSCredentials{
		AccessKeyID:     derefString(out.Credentials.AccessKeyId),
		SecretAccessKey: derefString(out.Credentials.SecretAccessKey),
		SessionToken:    derefString(out.Credentials.SessionToken),
	}
	if out.Credentials.Expiration != nil {
		creds.Expiration = *out.Credentials.Expiration
	}
	s.creds = &creds
	s.client = nil
	return creds, nil
}

// Client returns an EC2 client bound to the current credentials. A new one
// is built after the assumed credentials are refreshed.
func (s *Session) Client(ctx context.Context) (*Client, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.client = NewClient(cfg)
	}
	return s.client, nil
}

// Identity reports who the session acts as.
func (s *Session) Identity(ctx context.Context) (Identity, error) {
	api := s.stsClient
	if s.roleARN != "" {
		cfg, err := s.Config(ctx)
		if err != nil {
			return Identity{}, err
		}
		api = sts.NewFromConfig(cfg)
	}
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("get caller identity: %w", err)
	}
	return Identity{Account: derefString(out.Account), ARN: derefString(out.Arn)}, nil
}
