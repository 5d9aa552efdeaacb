package tenants

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/pkg/apperrors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service manages the tenant registry and API keys.
type Service struct {
	DB *gorm.DB
}

// Seed tenants shipped with the system.
var seedTenants = []domain.Tenant{
	{Code: "HKU", Name: "The University of Hong Kong", SpecialistEmail: "cedars@hku.hk"},
	{Code: "HKUST", Name: "Hong Kong University of Science and Technology", SpecialistEmail: "housing@ust.hk"},
	{Code: "CUHK", Name: "The Chinese University of Hong Kong", SpecialistEmail: "housing@cuhk.edu.hk"},
}

// Seed creates the default tenants if they do not exist yet.
func (s *Service) Seed(ctx context.Context) error {
	for _, t := range seedTenants {
		tenant := t
		err := s.DB.WithContext(ctx).Where("code = ?", tenant.Code).First(&domain.Tenant{}).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.DB.WithContext(ctx).Create(&tenant).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByCode returns the tenant with the given code.
func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := s.DB.WithContext(ctx).Where("code = ?", strings.ToUpper(code)).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Tenant not found")
		}
		return nil, err
	}
	return &tenant, nil
}

// IssueKey creates a new API key for the tenant and returns the plaintext
// once. Only the bcrypt hash is stored.
func (s *Service) IssueKey(ctx context.Context, code string) (string, error) {
	tenant, err := s.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	key := tenant.Code + "_" + hex.EncodeToString(secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := s.DB.WithContext(ctx).Create(&domain.TenantAPIKey{
		TenantID: tenant.ID,
		KeyHash:  string(hash),
		Active:   true,
	}).Error; err != nil {
		return "", err
	}
	return key, nil
}

// ErrInvalidKey is returned for any key that does not verify.
var ErrInvalidKey = errors.New("invalid API key")

// Verify resolves an API key of the form <CODE>_<secret> to its tenant and
// updates the key's last-used timestamp.
func (s *Service) Verify(ctx context.Context, key string) (*domain.Tenant, error) {
	code, _, ok := strings.Cut(key, "_")
	if !ok || code == "" {
		return nil, ErrInvalidKey
	}
	var tenant domain.Tenant
	if err := s.DB.WithContext(ctx).Where("code = ?", strings.ToUpper(code)).First(&tenant).Error; err != nil {
		return nil, ErrInvalidKey
	}
	var keys []domain.TenantAPIKey
	if err := s.DB.WithContext(ctx).Where("tenant_id = ? AND active = ?", tenant.ID, true).Find(&keys).Error; err != nil {
		return nil, err
	}
	for i := range keys {
		if bcrypt.CompareHashAndPassword([]byte(keys[i].KeyHash), []byte(key)) == nil {
			now := time.Now()
			_ = s.DB.WithContext(ctx).Model(&keys[i]).Update("last_used", &now).Error
			return &tenant, nil
		}
	}
	return nil, ErrInvalidKey
}

// ResolveRequester maps a requester identifier like "HKU_3035001234" to its
// tenant by code prefix. Returns nil when no tenant code matches.
func (s *Service) ResolveRequester(ctx context.Context, userID string) (*domain.Tenant, error) {
	if userID == "" {
		return nil, nil
	}
	var all []domain.Tenant
	if err := s.DB.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, err
	}
	upper := strings.ToUpper(userID)
	for i := range all {
		if strings.HasPrefix(upper, strings.ToUpper(all[i].Code)+"_") {
			return &all[i], nil
		}
	}
	return nil, nil
}
