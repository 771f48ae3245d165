package common

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomCode_InRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		c, err := RandomCode(nil)
		require.NoError(t, err)
		if c < ResetCodeMin || c > ResetCodeMax {
			t.Fatalf("code %d out of range", c)
		}
	}
}

func TestRandomCode_Deterministic(t *testing.T) {
	// a zero stream always yields the lower bound
	c, err := RandomCode(bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, ResetCodeMin, c)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomCode_ReaderError(t *testing.T) {
	_, err := RandomCode(failingReader{})
	require.Error(t, err)
}

func TestOccurrenceNotFound_IsNotFound(t *testing.T) {
	assert.True(t, errors.Is(ErrOccurrenceNotFound, ErrorNotFound))
}
