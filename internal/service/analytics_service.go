package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

// ErrAnalyticsUnsupported is returned for platforms without an analytics API.
var ErrAnalyticsUnsupported = errors.New("analytics not supported for this platform")

type AnalyticsService interface {
	PostAnalytics(ctx context.Context, postID, userID, tenantID int64, platform string) (*gateway.AnalyticsSnapshot, error)
}

type analyticsService struct {
	pr       repository.PostRepository
	rr       repository.PublishRecordRepository
	gateways *gateway.Registry
	creds    CredentialService
}

func NewAnalyticsService(pr repository.PostRepository, rr repository.PublishRecordRepository, gateways *gateway.Registry, creds CredentialService) AnalyticsService {
	return &analyticsService{pr: pr, rr: rr, gateways: gateways, creds: creds}
}

func (s *analyticsService) PostAnalytics(ctx context.Context, postID, userID, tenantID int64, platform string) (*gateway.AnalyticsSnapshot, error) {
	post, err := ownedPost(ctx, s.pr, postID, userID, tenantID)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.Resolve(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	provider, ok := gw.(gateway.AnalyticsProvider)
	if !ok {
		return nil, ErrAnalyticsUnsupported
	}

	record, err := s.rr.GetByPostAndPlatform(ctx, post.ID, platform)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Succeeded() {
		return nil, models.ErrRecordNotFound
	}

	cred, err := s.creds.GetAccessToken(ctx, models.CredentialRef{UserID: post.UserID, TenantID: post.TenantID, Platform: platform})
	if err != nil {
		return nil, err
	}
	return provider.GetAnalytics(ctx, record.PlatformPostID, cred.AccessToken)
}
