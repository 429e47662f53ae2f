package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type probe struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	require.Error(t, err)
}

func TestDialectNames(t *testing.T) {
	for _, typ := range []string{"sqlite", "postgres", "mysql"} {
		d, err := Dialect(Config{Type: typ, Name: "songlake"})
		require.NoError(t, err, typ)
		assert.Equal(t, typ, d.Name())
	}
}

func TestOpenSQLiteInMemory(t *testing.T) {
	conn, err := Open(Config{Type: "sqlite", Name: "file::memory:?cache=shared"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&probe{}))

	require.NoError(t, conn.Create(&probe{ID: "a", Name: "first"}).Error)
	err = conn.Create(&probe{ID: "a", Name: "again"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyErr(err))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
	assert.False(t, IsDuplicateKeyErr(nil))

	var got probe
	require.NoError(t, conn.First(&got, "id = ?", "a").Error)
	assert.Equal(t, "first", got.Name)
	assert.ErrorIs(t, conn.First(&got, "id = ?", "b").Error, gorm.ErrRecordNotFound)
}
