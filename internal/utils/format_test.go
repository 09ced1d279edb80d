package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	require.Equal(t, "999", Number(999))
	require.Equal(t, "1,234,567", Number(1234567))
	require.Equal(t, "-12,000", Number(-12000))
}

func TestBytes(t *testing.T) {
	require.Equal(t, "512 B", Bytes(512))
	require.Equal(t, "1.5 KiB", Bytes(1536))
	require.Equal(t, "3.0 GiB", Bytes(3<<30))
}

func TestDuration(t *testing.T) {
	require.Equal(t, "350ms", Duration(350*time.Millisecond))
	require.Equal(t, "5.2s", Duration(5200*time.Millisecond))
	require.Equal(t, "2h15m", Duration(2*time.Hour+15*time.Minute))
}

func TestRate(t *testing.T) {
	require.Equal(t, "123.45", Rate(123.45))
	require.Equal(t, "12.34K", Rate(12340))
}

func TestProgressDisabled(t *testing.T) {
	p := NewProgress("test", false)
	p.Update(1, 3, "one")
	p.Finish()
}
