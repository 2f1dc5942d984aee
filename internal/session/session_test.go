package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/message"
)

func TestArmAndCancel(t *testing.T) {
	sess := New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")

	sess.Arm(SequenceTimeout)
	_, ok := sess.Deadlines[SequenceTimeout]
	assert.True(t, ok)

	sess.Cancel(SequenceTimeout)
	_, ok = sess.Deadlines[SequenceTimeout]
	assert.False(t, ok)
}

func TestNextDeadlinePicksSoonest(t *testing.T) {
	sess := New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")
	now := time.Now()
	sess.Deadlines[OngoingTimeout] = now.Add(time.Minute)
	sess.Deadlines[PerformanceTimeout] = now.Add(time.Second)

	name, at, found := sess.NextDeadline()
	require.True(t, found)
	assert.Equal(t, PerformanceTimeout, name)
	assert.True(t, at.Before(now.Add(time.Minute)))
}

func TestNextDeadlineEmptyWhenNoneArmed(t *testing.T) {
	sess := New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")
	_, _, found := sess.NextDeadline()
	assert.False(t, found)
}

func TestResumeResetsToStartState(t *testing.T) {
	sess := New([8]byte{1}, RoleEVCC, message.DialectISO20, "SupportedAppProtocol")
	sess.CurrentState = "Pause"
	sess.Paused = true

	sess.Resume()

	assert.Equal(t, "SupportedAppProtocol", sess.CurrentState)
	assert.False(t, sess.Paused)
}

func TestStopRunsBothDelaysThenCloses(t *testing.T) {
	origPreClose, origSocketClose := PreCloseDelay, SocketCloseDelay
	PreCloseDelay = time.Millisecond
	SocketCloseDelay = time.Millisecond
	defer func() { PreCloseDelay, SocketCloseDelay = origPreClose, origSocketClose }()

	sess := New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")
	closed := false
	err := sess.Stop(context.Background(), func() error {
		closed = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, sess.Terminated)
}

func TestStopShortCircuitsOnContextCancellation(t *testing.T) {
	PreCloseDelay = time.Hour
	defer func() { PreCloseDelay = 2 * time.Second }()

	sess := New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	closed := false
	err := sess.Stop(ctx, func() error {
		closed = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, closed)
}

func TestTimeoutForKnownAndUnknownTimers(t *testing.T) {
	assert.Equal(t, 40*time.Second, TimeoutFor(message.DialectISO2, SequenceTimeout))
	assert.Equal(t, 60*time.Second, TimeoutFor(message.DialectISO2, OngoingTimeout))
	assert.Equal(t, 4500*time.Millisecond, TimeoutFor(message.DialectISO2, PerformanceTimeout))
	assert.Equal(t, 40*time.Second, TimeoutFor(message.DialectISO20, SequenceTimeout))
}
