package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	s := Every(5 * time.Minute)
	now := time.Now()
	assert.Equal(t, now.Add(5*time.Minute), s.Next(now))
}

func TestEvery_MultipleNext(t *testing.T) {
	s := Every(time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	next1 := s.Next(start)
	next2 := s.Next(next1)

	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), next1)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), next2)
}

func TestCron(t *testing.T) {
	s := Cron("0 9 * * *")
	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	next := s.Next(from)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestCron_Seconds(t *testing.T) {
	s := Cron("*/15 * * * * *")
	from := time.Date(2024, 1, 1, 8, 0, 1, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 15, 0, time.UTC), s.Next(from))
}

func TestCron_Descriptor(t *testing.T) {
	s, err := ParseCron("@every 30s")
	require.NoError(t, err)
	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(30*time.Second), s.Next(from))
}

func TestCron_InvalidExpression(t *testing.T) {
	_, err := ParseCron("invalid cron")
	assert.Error(t, err)
	assert.Panics(t, func() {
		Cron("invalid cron")
	})
}
