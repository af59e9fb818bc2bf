package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvironmentVariables(t *testing.T) {
	t.Setenv("TRAVIGO_REDIS_ADDRESS", "redis:6379=x")
	t.Setenv("UNRELATED_SETTING", "1")

	env := GetEnvironmentVariables()

	assert.Equal(t, "redis:6379=x", env["TRAVIGO_REDIS_ADDRESS"])
	assert.NotContains(t, env, "UNRELATED_SETTING")
}

func TestPartition(t *testing.T) {
	even, odd := Partition([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 0 })

	assert.Equal(t, []int{2, 4}, even)
	assert.Equal(t, []int{1, 3, 5}, odd)

	kept, removed := Partition(nil, func(string) bool { return true })
	assert.Nil(t, kept)
	assert.Nil(t, removed)
}
