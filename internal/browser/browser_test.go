// File: internal/browser/browser_test.go
package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/stealth"
)

func newStubSession() (*Session, *int) {
	closes := 0
	s := &Session{
		ctx:    context.Background(),
		cancel: func() { closes++ },
		logger: zap.NewNop(),
	}
	return s, &closes
}

func TestSessionCloseIsExactlyOnce(t *testing.T) {
	s, closes := newStubSession()

	s.Close()
	s.Close()
	s.Close()

	assert.Equal(t, 1, *closes)
}

func TestSessionCloseIsConcurrencySafe(t *testing.T) {
	s, closes := newStubSession()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, *closes)
}

func TestRunRefusesClosedSession(t *testing.T) {
	s, _ := newStubSession()
	s.Close()

	err := s.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestRunRefusesCancelledContext(t *testing.T) {
	s, _ := newStubSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.run(ctx), context.Canceled)
}

func TestNetworkQuiet(t *testing.T) {
	s, _ := newStubSession()

	s.netMu.Lock()
	s.inflight = 0
	s.lastActivity = time.Now().Add(-time.Second)
	s.netMu.Unlock()
	assert.True(t, s.networkQuiet(500*time.Millisecond))

	s.netMu.Lock()
	s.inflight = 2
	s.netMu.Unlock()
	assert.False(t, s.networkQuiet(500*time.Millisecond))

	s.netMu.Lock()
	s.inflight = 0
	s.lastActivity = time.Now()
	s.netMu.Unlock()
	assert.False(t, s.networkQuiet(500*time.Millisecond))
}

func TestWaitNetworkIdleTimesOut(t *testing.T) {
	s, _ := newStubSession()
	s.netMu.Lock()
	s.inflight = 1
	s.lastActivity = time.Now()
	s.netMu.Unlock()

	start := time.Now()
	err := s.WaitNetworkIdle(context.Background(), 300*time.Millisecond)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestWaitNetworkIdleReturnsWhenQuiet(t *testing.T) {
	s, _ := newStubSession()
	s.netMu.Lock()
	s.inflight = 0
	s.lastActivity = time.Now().Add(-time.Second)
	s.netMu.Unlock()

	assert.NoError(t, s.WaitNetworkIdle(context.Background(), time.Second))
}

func TestLaunchHint(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New(`exec: "google-chrome": executable file not found in $PATH`), "exec_path"},
		{errors.New("chrome failed: cannot open display :0"), "headless"},
		{errors.New("error while loading shared libraries: libnss3.so"), "native libraries"},
		{errors.New("context deadline exceeded"), "launch timeout"},
		{errors.New("something else entirely"), ""},
	}
	for _, tc := range tests {
		hint := launchHint(tc.err)
		if tc.want == "" {
			assert.Empty(t, hint)
		} else {
			assert.Contains(t, hint, tc.want)
		}
	}
}

func TestStorageSeedScript(t *testing.T) {
	profile := stealth.Profile{LocalStorage: map[string]string{"theme": "dark", "visit_count": "7"}}
	script, err := storageSeedScript(profile)
	require.NoError(t, err)

	assert.Contains(t, script, `"theme":"dark"`)
	assert.Contains(t, script, `"visit_count":"7"`)
	assert.Contains(t, script, "google.com")
	// Only seeds, never overwrites.
	assert.Contains(t, script, "localStorage.getItem(k) === null")
}
