package sensors

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/workwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLocation(t *testing.T) {
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	l := StaticLocation{Coordinates: models.Coordinates{Latitude: 41, Longitude: 29}, Accuracy: 3, Clock: &FixedClock{T: at}}

	f, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 41.0, f.Coordinates.Latitude)
	assert.Equal(t, "static", f.Provider)
	assert.Equal(t, at, f.Timestamp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Locate(ctx)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestDeniedLocation(t *testing.T) {
	_, err := DeniedLocation{}.Locate(context.Background())
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestCellSources(t *testing.T) {
	c := NoCell{}.Sample(context.Background())
	assert.Equal(t, models.CellNotAvailable, c.Status)
	assert.NoError(t, c.Validate())

	s := StaticCell{Context: models.CellNoPermissionContext()}
	assert.Equal(t, models.CellNoPermission, s.Sample(context.Background()).Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, models.CellNotAvailable, s.Sample(ctx).Status)
}

func TestFixedClock(t *testing.T) {
	c := &FixedClock{T: time.Unix(0, 0)}
	c.Advance(time.Hour)
	assert.Equal(t, time.Unix(3600, 0), c.Now())
}

func TestStaticPassword_ReturnsCopy(t *testing.T) {
	p := StaticPassword("pw1")
	b, err := p.Password(context.Background(), "Password: ", true)
	require.NoError(t, err)
	b[0] = 'x'
	assert.Equal(t, StaticPassword("pw1"), p)
}
