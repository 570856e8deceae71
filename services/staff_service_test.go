package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/pos-sync/models"
)

func seedStaff(t *testing.T, db *gorm.DB, tenantID, id, pin string, active bool) {
	t.Helper()
	hash, err := HashPIN(pin)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.StaffUser{
		ID:        id,
		TenantID:  tenantID,
		Name:      "Dewi",
		Role:      "cashier",
		PINHash:   hash,
		IsActive:  active,
		CreatedAt: time.Now(),
	}).Error)
}

func TestHashPINValidation(t *testing.T) {
	for _, pin := range []string{"1234", "123456"} {
		hash, err := HashPIN(pin)
		require.NoError(t, err, pin)
		assert.NotEmpty(t, hash)
		assert.NotContains(t, hash, pin)
	}

	for _, pin := range []string{"", "123", "1234567", "12a4", "12 34"} {
		_, err := HashPIN(pin)
		assert.ErrorIs(t, err, ErrInvalidPIN, pin)
	}
}

func TestStaffLoginSuccess(t *testing.T) {
	db := setupTestDB(t)
	seedStaff(t, db, "tenant-1", "staff-1", "4321", true)
	svc := NewStaffService(db, "tenant-1")

	session, err := svc.Login("staff-1", "4321")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "staff-1", session.StaffID)
	assert.Equal(t, "Dewi", session.Name)
	assert.Equal(t, "cashier", session.Role)
	assert.Same(t, session, svc.Session())

	var staff models.StaffUser
	require.NoError(t, db.Where("id = ?", "staff-1").First(&staff).Error)
	assert.NotNil(t, staff.LastLoginAt)
}

func TestStaffLoginWrongPIN(t *testing.T) {
	db := setupTestDB(t)
	seedStaff(t, db, "tenant-1", "staff-1", "4321", true)
	svc := NewStaffService(db, "tenant-1")

	_, err := svc.Login("staff-1", "9999")
	assert.ErrorIs(t, err, ErrBadPIN)
	assert.Nil(t, svc.Session())
}

func TestStaffLoginLockoutAfterThreeFailures(t *testing.T) {
	db := setupTestDB(t)
	seedStaff(t, db, "tenant-1", "staff-1", "4321", true)
	svc := NewStaffService(db, "tenant-1")

	for i := 0; i < 3; i++ {
		_, err := svc.Login("staff-1", "9999")
		assert.ErrorIs(t, err, ErrBadPIN)
	}

	// Even the correct PIN is refused while locked out.
	_, err := svc.Login("staff-1", "4321")
	assert.ErrorIs(t, err, ErrStaffLockout)

	// Other staff are unaffected.
	seedStaff(t, db, "tenant-1", "staff-2", "5555", true)
	session, err := svc.Login("staff-2", "5555")
	require.NoError(t, err)
	assert.Equal(t, "staff-2", session.StaffID)
}

func TestStaffLoginMalformedPIN(t *testing.T) {
	svc := NewStaffService(nil, "tenant-1")

	_, err := svc.Login("staff-1", "12")
	assert.ErrorIs(t, err, ErrInvalidPIN)
	_, err = svc.Login("staff-1", "abcd")
	assert.ErrorIs(t, err, ErrInvalidPIN)
}

func TestStaffLoginUnknownOrInactive(t *testing.T) {
	db := setupTestDB(t)
	seedStaff(t, db, "tenant-1", "staff-inactive", "4321", false)
	svc := NewStaffService(db, "tenant-1")

	_, err := svc.Login("staff-none", "4321")
	assert.ErrorIs(t, err, ErrStaffUnknown)

	_, err = svc.Login("staff-inactive", "4321")
	assert.ErrorIs(t, err, ErrStaffUnknown)
}

func TestStaffLoginScopedToTenant(t *testing.T) {
	db := setupTestDB(t)
	seedStaff(t, db, "tenant-other", "staff-1", "4321", true)
	svc := NewStaffService(db, "tenant-1")

	_, err := svc.Login("staff-1", "4321")
	assert.ErrorIs(t, err, ErrStaffUnknown)
}

func TestStaffLogout(t *testing.T) {
	db := setupTestDB(t)
	seedStaff(t, db, "tenant-1", "staff-1", "4321", true)
	svc := NewStaffService(db, "tenant-1")

	_, err := svc.Login("staff-1", "4321")
	require.NoError(t, err)
	require.NotNil(t, svc.Session())

	svc.Logout()
	assert.Nil(t, svc.Session())
}
