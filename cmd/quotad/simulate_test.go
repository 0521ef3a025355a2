package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_AuthPolicy(t *testing.T) {
	path := writeConfig(t, "")

	out, err := runCommand(t, "simulate", "--config", path, "-p", "auth", "-n", "12", "-c", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "policy=auth tier=fallback")
	assert.Contains(t, out, "outcome=failure")
	assert.Contains(t, out, "admitted:   5\n")
	assert.Contains(t, out, "rejected:   7\n")
	assert.Contains(t, out, "failed:     0\n")
	assert.Contains(t, out, "violations: 7\n")
}

func TestSimulate_AuthSuccessfulLoginsAreNotCounted(t *testing.T) {
	path := writeConfig(t, "")

	out, err := runCommand(t, "simulate", "--config", path, "-p", "auth", "-n", "12", "-c", "1", "--outcome", "success")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=success")
	assert.Contains(t, out, "admitted:   12\n")
	assert.Contains(t, out, "rejected:   0\n")
	assert.Contains(t, out, "violations: 0\n")

	// api does not skip successes, so the outcome makes no difference
	out, err = runCommand(t, "simulate", "--config", path, "-p", "api", "-n", "65", "-c", "1", "--outcome", "success")
	require.NoError(t, err)
	assert.Contains(t, out, "admitted:   60\n")
	assert.Contains(t, out, "rejected:   5\n")
}

func TestSimulate_TierFlag(t *testing.T) {
	path := writeConfig(t, "")

	out, err := runCommand(t, "simulate", "--config", path, "-p", "api", "--tier", "pro", "-n", "310", "-c", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "admitted:   300\n")
	assert.Contains(t, out, "rejected:   10\n")

	out, err = runCommand(t, "simulate", "--config", path, "-p", "analysis", "--tier", "unlimited", "-n", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "admitted:   50\n")
	assert.Contains(t, out, "violations: 0\n")
}

func TestSimulate_ConfiguredTierTable(t *testing.T) {
	path := writeConfig(t, `
quota:
  tiers:
    free:
      api:
        limit: 3
        window: 1m
`)

	out, err := runCommand(t, "simulate", "--config", path, "-p", "api", "-n", "5", "-c", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "admitted:   3\n")
	assert.Contains(t, out, "rejected:   2\n")
}

func TestSimulate_DualWindowSequential(t *testing.T) {
	path := writeConfig(t, "")

	// one worker: the dual window can overshoot when checks race
	out, err := runCommand(t, "simulate", "--config", path, "-p", "ai", "-n", "8", "-c", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "admitted:   5\n")
	assert.Contains(t, out, "rejected:   3\n")
}

func TestSimulate_InvalidInput(t *testing.T) {
	path := writeConfig(t, "")

	_, err := runCommand(t, "simulate", "--config", path, "-p", "uploads")
	assert.Error(t, err)

	_, err = runCommand(t, "simulate", "--config", path, "-n", "0")
	assert.Error(t, err)

	_, err = runCommand(t, "simulate", "--config", path, "--outcome", "maybe")
	assert.ErrorContains(t, err, "outcome must be success or failure")
}
