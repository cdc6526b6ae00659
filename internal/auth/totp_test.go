package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSW Y3DP EHPK 3PXP"

func TestNewTOTPVerifier(t *testing.T) {
	_, err := NewTOTPVerifier("")
	assert.Error(t, err)

	_, err = NewTOTPVerifier("not base32!")
	assert.Error(t, err)

	v, err := NewTOTPVerifier(testSecret)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", v.secret)
}

func TestTOTPVerifier_Verify(t *testing.T) {
	v, err := NewTOTPVerifier(testSecret)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	code, err := v.Code(now)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	ok, err := v.Verify(code)
	require.NoError(t, err)
	assert.True(t, ok)

	// One period of skew is accepted, two are not.
	prev, err := v.Code(now.Add(-30 * time.Second))
	require.NoError(t, err)
	ok, err = v.Verify(prev)
	require.NoError(t, err)
	assert.True(t, ok)

	stale, err := v.Code(now.Add(-90 * time.Second))
	require.NoError(t, err)
	ok, _ = v.Verify(stale)
	assert.False(t, ok)

	_, err = v.Verify("")
	assert.Error(t, err)
}
