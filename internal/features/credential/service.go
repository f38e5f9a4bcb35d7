package credential

import (
	"context"
	"errors"
	"fmt"

	"go-catalog-sync/internal/source"
	"go-catalog-sync/pkg/secrets"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrInactive      = errors.New("credentials are inactive")
	ErrSecretMissing = errors.New("client secret is required")
	ErrLookup        = errors.New("credential lookup failed")
)

// IsMisconfigured reports whether a Resolve error needs the tenant to fix
// their credentials, as opposed to a storage failure that may clear up.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactive) || errors.Is(err, secrets.ErrDecrypt)
}

type CredentialService interface {
	Get(ctx context.Context, tenantID primitive.ObjectID) (*CredentialView, error)
	Save(ctx context.Context, tenantID primitive.ObjectID, input CredentialInput) (*CredentialView, error)
	// Resolve returns decrypted credentials ready for the source client
	Resolve(ctx context.Context, tenantID primitive.ObjectID) (source.Credentials, error)
}

type CredentialServiceImpl struct {
	Repo     CredentialRepository
	Codec    secrets.Codec
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCredentialService(repo CredentialRepository, codec secrets.Codec, logger *zap.Logger) CredentialService {
	return &CredentialServiceImpl{
		Repo:     repo,
		Codec:    codec,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *CredentialServiceImpl) Get(ctx context.Context, tenantID primitive.ObjectID) (*CredentialView, error) {
	cred, err := s.Repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return toView(cred), nil
}

func (s *CredentialServiceImpl) Save(ctx context.Context, tenantID primitive.ObjectID, input CredentialInput) (*CredentialView, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	existing, err := s.Repo.GetByTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	cred := &TenantCredential{
		TenantID:  tenantID,
		StoreName: input.StoreName,
		APIURL:    input.APIURL,
		ClientID:  input.ClientID,
		IsActive:  true,
	}
	if input.IsActive != nil {
		cred.IsActive = *input.IsActive
	}

	switch {
	case input.ClientSecret != "":
		enc, err := s.Codec.Encrypt(input.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt client secret: %w", err)
		}
		cred.ClientSecret = enc
	case existing != nil && existing.ClientSecret != "":
		cred.ClientSecret = existing.ClientSecret
	default:
		return nil, ErrSecretMissing
	}

	if err := s.Repo.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant credentials saved",
		zap.String("tenant_id", tenantID.Hex()),
		zap.String("store", cred.StoreName),
		zap.Bool("is_active", cred.IsActive))
	return toView(cred), nil
}

func (s *CredentialServiceImpl) Resolve(ctx context.Context, tenantID primitive.ObjectID) (source.Credentials, error) {
	cred, err := s.Repo.GetByTenant(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return source.Credentials{}, err
	}
	if err != nil {
		return source.Credentials{}, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if !cred.IsActive {
		return source.Credentials{}, ErrInactive
	}

	secret, err := s.Codec.Decrypt(cred.ClientSecret)
	if err != nil {
		return source.Credentials{}, err
	}

	return source.Credentials{
		StoreName:    cred.StoreName,
		APIURL:       cred.APIURL,
		ClientID:     cred.ClientID,
		ClientSecret: secret,
	}, nil
}

func toView(cred *TenantCredential) *CredentialView {
	return &CredentialView{
		TenantCredential: *cred,
		HasSecret:        cred.ClientSecret != "",
	}
}
