package labsched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerEquality(t *testing.T) {
	w1, err := NewWorker("storage", 45)
	require.NoError(t, err)
	w2, err := NewWorker("storage", 45)
	require.NoError(t, err)
	assert.True(t, w1.Equal(w2), "workers with the same name should be equal")

	w3, err := NewWorker("hotplate", 25)
	require.NoError(t, err)
	assert.False(t, w1.Equal(w3))
}

func TestWorkerCapacityValidation(t *testing.T) {
	_, err := NewWorker("bad", 0)
	assert.Error(t, err)

	_, err = NewWorker("bad", -1)
	assert.Error(t, err)

	w, err := NewWorker("ok", 1)
	require.NoError(t, err)
	assert.True(t, w.UnitCapacity())
}

func TestWorkerInitialFillValidation(t *testing.T) {
	_, err := NewWorker("storage", 10, WithInitialFill(-1))
	assert.Error(t, err)

	_, err = NewWorker("storage", 10, WithInitialFill(11))
	assert.Error(t, err)

	w, err := NewWorker("storage", 10, WithInitialFill(5), WithReservoir())
	require.NoError(t, err)
	assert.Equal(t, 5, w.InitialFill)
	assert.True(t, w.Reservoir)
}
