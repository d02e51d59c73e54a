package cmd

import (
	"testing"

	"github.com/robmorgan/tapsync/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempoMessage(t *testing.T) {
	t.Parallel()

	m, err := tempoMessage([]string{"128.5"}, false)
	require.NoError(t, err)
	assert.Equal(t, control.AddressBPM, m.Address)
	assert.Equal(t, []interface{}{float32(128.5)}, m.Arguments)

	m, err = tempoMessage(nil, true)
	require.NoError(t, err)
	assert.Equal(t, control.AddressTap, m.Address)
	assert.Empty(t, m.Arguments)

	_, err = tempoMessage(nil, false)
	assert.Error(t, err)
	_, err = tempoMessage([]string{"128"}, true)
	assert.Error(t, err)
	_, err = tempoMessage([]string{"fast"}, false)
	assert.Error(t, err)
}
