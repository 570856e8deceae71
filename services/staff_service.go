package services

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/utils"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

var (
	ErrInvalidPIN   = errors.New("invalid PIN, must be 4-6 digits")
	ErrStaffLockout = errors.New("too many failed attempts")
	ErrBadPIN       = errors.New("PIN does not match")
	ErrStaffUnknown = errors.New("staff member not found or inactive")
)

const (
	maxFailedAttempts = 3
	lockoutDuration   = 30 * time.Second
)

// StaffService verifies staff PINs against the locally synced staff table
// so terminals keep working while the backend is unreachable. The session
// lives in memory only.
type StaffService struct {
	db       *gorm.DB
	tenantID string

	mu             sync.Mutex
	session        *models.StaffSession
	failedAttempts map[string]*attemptRecord
}

type attemptRecord struct {
	count        int
	lockoutUntil time.Time
}

func NewStaffService(db *gorm.DB, tenantID string) *StaffService {
	return &StaffService{
		db:             db,
		tenantID:       tenantID,
		failedAttempts: map[string]*attemptRecord{},
	}
}

// HashPIN prepares a PIN for storage.
func HashPIN(pin string) (string, error) {
	if !pinPattern.MatchString(pin) {
		return "", ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login verifies a staff member's PIN and opens the in-memory session.
// Three failed attempts lock the account out for thirty seconds.
func (s *StaffService) Login(staffID, pin string) (*models.StaffSession, error) {
	if !pinPattern.MatchString(pin) {
		return nil, ErrInvalidPIN
	}

	s.mu.Lock()
	if rec, ok := s.failedAttempts[staffID]; ok && time.Now().Before(rec.lockoutUntil) {
		remaining := time.Until(rec.lockoutUntil).Round(time.Second)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w, try again in %s", ErrStaffLockout, remaining)
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil, ErrStaffUnknown
	}
	var staff models.StaffUser
	err := s.db.Where("tenant_id = ? AND id = ? AND is_active = ?", s.tenantID, staffID, true).
		First(&staff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStaffUnknown
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(staff.PINHash), []byte(pin)) != nil {
		s.recordFailure(staffID)
		return nil, ErrBadPIN
	}

	s.mu.Lock()
	delete(s.failedAttempts, staffID)
	session := &models.StaffSession{
		StaffID:    staff.ID,
		TenantID:   staff.TenantID,
		Name:       staff.Name,
		Role:       staff.Role,
		LoggedInAt: time.Now(),
	}
	s.session = session
	s.mu.Unlock()

	now := time.Now()
	if err := s.db.Model(&models.StaffUser{}).
		Where("tenant_id = ? AND id = ?", s.tenantID, staff.ID).
		Update("last_login_at", now).Error; err != nil {
		utils.ErrorLogger.Printf("last login update failed for %s: %v", staff.ID, err)
	}

	return session, nil
}

func (s *StaffService) recordFailure(staffID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.failedAttempts[staffID]
	if !ok {
		rec = &attemptRecord{}
		s.failedAttempts[staffID] = rec
	}
	rec.count++
	if rec.count >= maxFailedAttempts {
		rec.lockoutUntil = time.Now().Add(lockoutDuration)
		rec.count = 0
	}
}

// Logout closes the current session.
func (s *StaffService) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// Session returns the current session, or nil when nobody is logged in.
func (s *StaffService) Session() *models.StaffSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}
