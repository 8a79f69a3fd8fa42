package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/distexec/pkg/security"
)

func TestDelay_NextIsMonotoneUpToCap(t *testing.T) {
	d := NewDelay(DefaultDelayStep, DefaultMaxDelay)

	var got []time.Duration
	for i := 0; i < 13; i++ {
		got = append(got, d.Next())
	}

	want := []time.Duration{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1000, 1000}
	for i := range want {
		want[i] *= time.Millisecond
	}
	assert.Equal(t, want, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
	assert.Equal(t, DefaultMaxDelay, d.Current())
}

func TestDelay_Reset(t *testing.T) {
	d := NewDelay(10*time.Millisecond, 50*time.Millisecond)
	d.Next()
	d.Next()
	assert.Equal(t, 20*time.Millisecond, d.Current())

	d.Reset()
	assert.Zero(t, d.Current())
	assert.Zero(t, d.Next())
}

func TestDelay_ClampsSettings(t *testing.T) {
	d := NewDelay(0, time.Hour)
	assert.Equal(t, security.MinRetryDelayStep, d.step)
	assert.Equal(t, security.MaxRetryDelay, d.Max())

	d = NewDelay(time.Second, time.Millisecond)
	assert.Equal(t, time.Second, d.Max())
}

func TestDelay_ConcurrentNextNeverExceedsCap(t *testing.T) {
	d := NewDelay(time.Millisecond, 20*time.Millisecond)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				assert.LessOrEqual(t, d.Next(), 20*time.Millisecond)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 20*time.Millisecond, d.Current())
}
