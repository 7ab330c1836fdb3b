package service

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))
	return db
}

func TestRotateToken(t *testing.T) {
	db := newTestDB(t)
	ts := &TokenService{DB: db, JWTSecret: []byte("access"), RefreshSecret: []byte("refresh")}

	refresh, jti, err := SignRefreshToken(7, "user", ts.RefreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(db, refresh, jti, "user", 7))

	access, newRefresh, err := ts.RotateToken(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, refresh, newRefresh)

	// The old token is revoked and cannot be rotated again.
	_, _, err = ts.RotateToken(refresh)
	require.Error(t, err)

	// The new one can.
	_, _, err = ts.RotateToken(newRefresh)
	require.NoError(t, err)
}

func TestValidateRefreshRejectsAccessToken(t *testing.T) {
	db := newTestDB(t)

	access, err := SignAccessToken(7, "user", []byte("refresh"))
	require.NoError(t, err)

	_, err = ValidateRefresh(access, []byte("refresh"), db)
	require.Error(t, err)
}

func TestValidateRefreshUnknownToken(t *testing.T) {
	db := newTestDB(t)

	refresh, _, err := SignRefreshToken(7, "user", []byte("refresh"))
	require.NoError(t, err)

	// Signed correctly but never persisted.
	_, err = ValidateRefresh(refresh, []byte("refresh"), db)
	require.Error(t, err)
}

func TestHashTokenStable(t *testing.T) {
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	require.Len(t, HashToken("abc"), 64)
}
