package mocks

import (
	"context"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockReferenceRepository is a mock implementation of persistence.ReferenceRepository interface.
type MockReferenceRepository struct {
	mock.Mock
}

func (m *MockReferenceRepository) VisaTypeByCode(ctx context.Context, code string) (*models.VisaType, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.VisaType), args.Error(1)
}

func (m *MockReferenceRepository) VisaTypes(ctx context.Context) ([]*models.VisaType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.VisaType), args.Error(1)
}

func (m *MockReferenceRepository) SaveVisaType(ctx context.Context, visaType *models.VisaType) error {
	args := m.Called(ctx, visaType)

	return args.Error(0)
}

func (m *MockReferenceRepository) MappingFor(ctx context.Context, service, fromCountry string) (*models.CountryServiceMapping, error) {
	args := m.Called(ctx, service, fromCountry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CountryServiceMapping), args.Error(1)
}

func (m *MockReferenceRepository) SaveMapping(ctx context.Context, mapping *models.CountryServiceMapping) error {
	args := m.Called(ctx, mapping)

	return args.Error(0)
}

func (m *MockReferenceRepository) Reviewers(ctx context.Context) ([]*models.Reviewer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Reviewer), args.Error(1)
}

func (m *MockReferenceRepository) SaveReviewer(ctx context.Context, reviewer *models.Reviewer) error {
	args := m.Called(ctx, reviewer)

	return args.Error(0)
}

// MockDigestRepository is a mock implementation of persistence.DigestRepository interface.
type MockDigestRepository struct {
	mock.Mock
}

func (m *MockDigestRepository) AppendOpen(ctx context.Context, recipientID string, since time.Time, mutate persistence.DigestMutation) (*models.DigestQueueEntry, error) {
	args := m.Called(ctx, recipientID, since, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DigestQueueEntry), args.Error(1)
}

func (m *MockDigestRepository) Pending(ctx context.Context) ([]*models.DigestQueueEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.DigestQueueEntry), args.Error(1)
}

func (m *MockDigestRepository) GetByID(ctx context.Context, id string) (*models.DigestQueueEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DigestQueueEntry), args.Error(1)
}

func (m *MockDigestRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (*models.DigestQueueEntry, error) {
	args := m.Called(ctx, id, sentAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DigestQueueEntry), args.Error(1)
}

// MockPersistence wraps a real store and lets tests swap individual repositories for mocks.
type MockPersistence struct {
	mock.Mock

	persistence.Persistence

	referenceRepo persistence.ReferenceRepository
	digestRepo    persistence.DigestRepository
}

// NewMockPersistence delegates to base for every repository not overridden.
func NewMockPersistence(base persistence.Persistence) *MockPersistence {
	return &MockPersistence{Persistence: base}
}

func (m *MockPersistence) WithReferenceRepository(repo persistence.ReferenceRepository) *MockPersistence {
	m.referenceRepo = repo

	return m
}

func (m *MockPersistence) WithDigestRepository(repo persistence.DigestRepository) *MockPersistence {
	m.digestRepo = repo

	return m
}

func (m *MockPersistence) ReferenceRepository() persistence.ReferenceRepository {
	if m.referenceRepo != nil {
		return m.referenceRepo
	}

	return m.Persistence.ReferenceRepository()
}

func (m *MockPersistence) DigestRepository() persistence.DigestRepository {
	if m.digestRepo != nil {
		return m.digestRepo
	}

	return m.Persistence.DigestRepository()
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
