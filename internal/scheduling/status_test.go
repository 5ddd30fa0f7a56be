package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, v := range []string{"RESERVED", "CONFIRMED", "CANCELLED"} {
		s, err := ParseStatus(v)
		require.NoError(t, err)
		assert.Equal(t, v, s.String())
	}

	for _, v := range []string{"", "reserved", "PENDING", "EXPIRED"} {
		_, err := ParseStatus(v)
		assert.ErrorIs(t, err, ErrInvalidStatus, "value=%q", v)
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusReserved, StatusConfirmed, StatusCancelled}
	legal := map[[2]Status]bool{
		{StatusReserved, StatusConfirmed}:  true,
		{StatusReserved, StatusCancelled}:  true,
		{StatusConfirmed, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_Conveniences(t *testing.T) {
	assert.True(t, StatusReserved.CanConfirm())
	assert.True(t, StatusReserved.CanCancel())
	assert.False(t, StatusConfirmed.CanConfirm())
	assert.True(t, StatusConfirmed.CanCancel())
	assert.False(t, StatusCancelled.CanConfirm())
	assert.False(t, StatusCancelled.CanCancel())
}
