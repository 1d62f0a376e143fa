package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fargoat/internal/blockchain/evm"
	"fargoat/internal/database"
	"fargoat/internal/models"
)

// Profile errors
var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrConflict       = errors.New("profile already exists")
)

const (
	maxUniqueNameLength = 100
	defaultProfileLimit = 100
)

// ProfileStore persists profiles. Get returns nil without error for a
// missing profile; Update and Delete report whether a profile matched.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) (bool, error)
	DeleteProfile(ctx context.Context, id string) (bool, error)
}

// ProfileInput holds the client-supplied profile fields
type ProfileInput struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	UniqueName    string `json:"unique_name"`
}

// ProfileService handles the profile directory
type ProfileService struct {
	store  ProfileStore
	logger *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(store ProfileStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:  store,
		logger: logger.Named("profiles"),
	}
}

// Create validates input and stores a new profile
func (s *ProfileService) Create(ctx context.Context, in ProfileInput) (*models.Profile, error) {
	if in.UserID == "" {
		in.UserID = uuid.New().String()
	}
	p, err := normalizeProfile(in)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New().String()

	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, s.storeError("create", err)
	}

	s.logger.Info("Profile created",
		zap.String("profile_id", p.ID),
		zap.String("unique_name", p.UniqueName))

	return p, nil
}

// Get retrieves a profile by ID
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, s.storeError("get", err)
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// List returns a page of profiles
func (s *ProfileService) List(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	if limit <= 0 || limit > defaultProfileLimit {
		limit = defaultProfileLimit
	}
	if offset < 0 {
		offset = 0
	}
	profiles, err := s.store.ListProfiles(ctx, limit, offset)
	if err != nil {
		return nil, s.storeError("list", err)
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return profiles, nil
}

// Update replaces the mutable fields of a profile. The user ID is fixed at creation.
func (s *ProfileService) Update(ctx context.Context, id string, in ProfileInput) (*models.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if in.UserID == "" {
		in.UserID = uuid.Nil.String()
	}
	p, err := normalizeProfile(in)
	if err != nil {
		return nil, err
	}
	p.ID = id

	found, err := s.store.UpdateProfile(ctx, p)
	if err != nil {
		return nil, s.storeError("update", err)
	}
	if !found {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}

	s.logger.Info("Profile updated", zap.String("profile_id", id))
	return p, nil
}

// Delete removes a profile
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	found, err := s.store.DeleteProfile(ctx, id)
	if err != nil {
		return s.storeError("delete", err)
	}
	if !found {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}

	s.logger.Info("Profile deleted", zap.String("profile_id", id))
	return nil
}

func (s *ProfileService) storeError(op string, err error) error {
	if errors.Is(err, database.ErrDuplicate) {
		return ErrConflict
	}
	s.logger.Error("Profile store failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("failed to %s profile: %w", op, err)
}

// normalizeProfile validates input, lower-cases the email and checksums
// the wallet address so every store compares the same canonical values
func normalizeProfile(in ProfileInput) (*models.Profile, error) {
	if _, err := uuid.Parse(in.UserID); err != nil {
		return nil, fmt.Errorf("%w: user_id must be a UUID", ErrInvalidProfile)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidProfile)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidProfile)
	}

	wallet, err := evm.ChecksumAddress(strings.TrimSpace(in.WalletAddress))
	if err != nil {
		return nil, fmt.Errorf("%w: wallet_address must be a 20 byte hex address", ErrInvalidProfile)
	}

	name := strings.TrimSpace(in.UniqueName)
	if name == "" {
		return nil, fmt.Errorf("%w: unique_name is required", ErrInvalidProfile)
	}
	if utf8.RuneCountInString(name) > maxUniqueNameLength {
		return nil, fmt.Errorf("%w: unique_name must be at most %d characters", ErrInvalidProfile, maxUniqueNameLength)
	}

	return &models.Profile{
		UserID:        in.UserID,
		Email:         email,
		WalletAddress: wallet,
		UniqueName:    name,
	}, nil
}

// MemoryProfileStore keeps profiles in memory when no database is configured
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
	now      func() time.Time
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]models.Profile),
		now:      time.Now,
	}
}

// conflicts reports whether another profile shares a unique column with p
func (m *MemoryProfileStore) conflicts(p *models.Profile, checkUserID bool) bool {
	for id, other := range m.profiles {
		if id == p.ID {
			continue
		}
		if (checkUserID && other.UserID == p.UserID) ||
			other.Email == p.Email ||
			other.WalletAddress == p.WalletAddress ||
			other.UniqueName == p.UniqueName {
			return true
		}
	}
	return false
}

func (m *MemoryProfileStore) CreateProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.ID]; ok || m.conflicts(p, true) {
		return database.ErrDuplicate
	}
	now := m.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.profiles[p.ID] = *p
	return nil
}

func (m *MemoryProfileStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryProfileStore) ListProfiles(_ context.Context, limit, offset int) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []models.Profile{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryProfileStore) UpdateProfile(_ context.Context, p *models.Profile) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.profiles[p.ID]
	if !ok {
		return false, nil
	}
	if m.conflicts(p, false) {
		return false, database.ErrDuplicate
	}
	p.UserID = existing.UserID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = m.now().UTC()
	m.profiles[p.ID] = *p
	return true, nil
}

func (m *MemoryProfileStore) DeleteProfile(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return false, nil
	}
	delete(m.profiles, id)
	return true, nil
}
