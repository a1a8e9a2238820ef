package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanConnectReflexive(t *testing.T) {
	for _, pt := range PortTypes {
		assert.True(t, CanConnect(pt, pt), "type %s should connect to itself", pt)
	}
}

func TestCanConnectAny(t *testing.T) {
	for _, pt := range PortTypes {
		assert.True(t, CanConnect(PortTypeAny, pt), "ANY -> %s", pt)
		assert.True(t, CanConnect(pt, PortTypeAny), "%s -> ANY", pt)
	}
}

func TestCanConnectTriggerSource(t *testing.T) {
	for _, pt := range PortTypes {
		assert.True(t, CanConnect(PortTypeTrigger, pt), "TRIGGER -> %s", pt)
	}
	// TRIGGER as a target only accepts TRIGGER and ANY sources.
	assert.False(t, CanConnect(PortTypeScalar, PortTypeTrigger))
	assert.False(t, CanConnect(PortTypeVolume, PortTypeTrigger))
}

func TestCanConnectConversions(t *testing.T) {
	assert.True(t, CanConnect(PortTypeObject, PortTypePosition))
	assert.False(t, CanConnect(PortTypePosition, PortTypeObject))

	assert.True(t, CanConnect(PortTypeScalar, PortTypeBoolean))
	assert.False(t, CanConnect(PortTypeBoolean, PortTypeScalar))

	assert.True(t, CanConnect(PortTypeString, PortTypeFilePath))
	assert.True(t, CanConnect(PortTypeFilePath, PortTypeString))
}

func TestCanConnectIncompatible(t *testing.T) {
	assert.False(t, CanConnect(PortTypeVolume, PortTypeScalar))
	assert.False(t, CanConnect(PortTypeObjectList, PortTypeObject))
	assert.False(t, CanConnect(PortTypePosition, PortTypeVolume))
	assert.False(t, CanConnect(PortTypeBoolean, PortTypeString))
}
