package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthLevelValidity(t *testing.T) {
	for _, level := range AllHealthLevels() {
		assert.True(t, level.IsValid(), "level %s", level)
	}
	assert.False(t, HealthLevel("thriving").IsValid())
}

func TestHealthLevelJSON(t *testing.T) {
	data, err := json.Marshal(HealthUnhealthy)
	require.NoError(t, err)
	assert.Equal(t, `"unhealthy"`, string(data))

	var level HealthLevel
	require.NoError(t, json.Unmarshal([]byte(`"unknown"`), &level))
	assert.Equal(t, HealthUnknown, level)

	assert.Error(t, json.Unmarshal([]byte(`"thriving"`), &level))
}

func TestHealthStatePredicates(t *testing.T) {
	assert.True(t, HealthState{Level: HealthHealthy}.Healthy())
	assert.False(t, HealthState{Level: HealthHealthy}.Blocking())

	assert.False(t, HealthState{Level: HealthUnknown}.Healthy())
	assert.False(t, HealthState{Level: HealthUnknown}.Blocking(), "unknown must never block")

	assert.False(t, HealthState{Level: HealthUnhealthy}.Healthy())
	assert.True(t, HealthState{Level: HealthUnhealthy}.Blocking())
}
