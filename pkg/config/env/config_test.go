package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/code-escrow/pkg/config"
)

func TestConfig(t *testing.T) {
	const key = "ENV_CONFIG_TEST_VAR"
	t.Setenv(key, "default")

	v, err := NewConfig(key).Get(context.Background())
	assert.Equal(t, []byte("default"), v)
	assert.Nil(t, err)

	t.Setenv(key, "")

	v, err = NewConfig(key).Get(context.Background())
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestTypedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv("ENV_CONFIG_TEST_STRIPES", "16")
	t.Setenv("ENV_CONFIG_TEST_BACKOFF", "10ms")

	assert.EqualValues(t, 16, NewUint64Config("env_config_test_stripes", 1024).Get(ctx))
	assert.Equal(t, 10*time.Millisecond, NewDurationConfig("ENV_CONFIG_TEST_BACKOFF", time.Second).Get(ctx))
	assert.Equal(t, "fallback", NewStringConfig("ENV_CONFIG_TEST_UNSET", "fallback").Get(ctx))
}
