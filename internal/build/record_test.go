package build

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatusValidity(t *testing.T) {
	for _, status := range AllBuildStatuses() {
		assert.True(t, status.IsValid(), "status %s", status)
	}
	assert.False(t, BuildStatus("demolished").IsValid())
}

func TestBuildStatusJSON(t *testing.T) {
	data, err := json.Marshal(BuildStatusBuilt)
	require.NoError(t, err)
	assert.Equal(t, `"built"`, string(data))

	var status BuildStatus
	require.NoError(t, json.Unmarshal([]byte(`"not_built"`), &status))
	assert.Equal(t, BuildStatusNotBuilt, status)

	assert.Error(t, json.Unmarshal([]byte(`"demolished"`), &status))
}

func TestBuildRecordBuilt(t *testing.T) {
	assert.True(t, BuildRecord{Status: BuildStatusBuilt}.Built())
	assert.False(t, BuildRecord{Status: BuildStatusFailed}.Built())
	assert.False(t, BuildRecord{Status: BuildStatusBuilding}.Built())
}
