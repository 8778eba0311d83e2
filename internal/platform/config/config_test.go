package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsPrefixedEnvironment(t *testing.T) {
	t.Setenv("TESTSVC_APP_ENV", "test")
	t.Setenv("TESTSVC_SERVICE_PORT", "9090")
	t.Setenv("TESTSVC_DB_NAME", "bookings")
	t.Setenv("TESTSVC_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TESTSVC_JWT_ACCESS_TTL", "2h")

	v, err := Load("TESTSVC")
	require.NoError(t, err)

	assert.Equal(t, "test", GetAppEnv(v))
	assert.Equal(t, ":9090", GetServicePort(v, "SERVICE_PORT"))
	assert.Equal(t, "bookings", LoadDatabaseConfig(v, "DB_NAME").DBName)
	assert.Equal(t, "localhost", LoadDatabaseConfig(v, "DB_NAME").Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, LoadKafkaConfig(v).Brokers)
	assert.Equal(t, 2*time.Hour, LoadJWTConfig(v).AccessTTL)
	assert.Empty(t, LoadRedisConfig(v).Addr)
}
