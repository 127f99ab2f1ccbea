package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGettersFallBackWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", String("INSTRUCTORBOOK_TEST_UNSET", "fallback"))
	assert.Equal(t, 7, Int("INSTRUCTORBOOK_TEST_UNSET", 7))
	assert.True(t, Bool("INSTRUCTORBOOK_TEST_UNSET", true))
	assert.Equal(t, time.Minute, Duration("INSTRUCTORBOOK_TEST_UNSET", time.Minute))
	assert.Nil(t, Strings("INSTRUCTORBOOK_TEST_UNSET"))

	_, err := RequiredString("INSTRUCTORBOOK_TEST_UNSET")
	require.Error(t, err)
}

func TestGettersReadEnvironment(t *testing.T) {
	t.Setenv("INSTRUCTORBOOK_TEST_INT", "42")
	t.Setenv("INSTRUCTORBOOK_TEST_BAD_INT", "forty")
	t.Setenv("INSTRUCTORBOOK_TEST_DURATION", "5m")
	t.Setenv("INSTRUCTORBOOK_TEST_SECONDS", "30")
	t.Setenv("INSTRUCTORBOOK_TEST_LIST", " a, ,b ,c")
	t.Setenv("INSTRUCTORBOOK_TEST_BOOL", "false")

	assert.Equal(t, 42, Int("INSTRUCTORBOOK_TEST_INT", 1))
	assert.Equal(t, 1, Int("INSTRUCTORBOOK_TEST_BAD_INT", 1))
	assert.Equal(t, 5*time.Minute, Duration("INSTRUCTORBOOK_TEST_DURATION", time.Second))
	assert.Equal(t, 30*time.Second, Duration("INSTRUCTORBOOK_TEST_SECONDS", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, Strings("INSTRUCTORBOOK_TEST_LIST"))
	assert.False(t, Bool("INSTRUCTORBOOK_TEST_BOOL", true))
}

func TestPortValidation(t *testing.T) {
	t.Setenv("INSTRUCTORBOOK_TEST_PORT", "70000")
	_, err := Port("INSTRUCTORBOOK_TEST_PORT", "8080")
	require.Error(t, err)

	p, err := Port("INSTRUCTORBOOK_TEST_PORT_UNSET", "8084")
	require.NoError(t, err)
	assert.Equal(t, "8084", p)
}
