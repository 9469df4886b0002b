package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	tempConfigsSubDir := filepath.Join(tempDir, "configs")
	err = os.Mkdir(tempConfigsSubDir, 0755)
	require.NoError(t, err)

	testAppName := "TestPoller"
	testBatchSize := 25
	testLogLevel := "debug"
	testEndpoints := "did:dht:abc=https://pfi-a.example.com/,did:dht:def=https://pfi-b.example.com"

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nRECONCILER_BATCH_SIZE=%d\nLOG_LEVEL=%s\nPFI_ENDPOINTS=%s\n",
		testAppName, testBatchSize, testLogLevel, testEndpoints,
	)
	envFilePath := filepath.Join(tempConfigsSubDir, "test_happy.env")
	err = os.WriteFile(envFilePath, []byte(envContent), 0644)
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	err = os.Chdir(tempDir)
	require.NoError(t, err)

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.Application.Name)
	assert.Equal(t, testBatchSize, cfg.Reconciler.BatchSize)
	assert.Equal(t, testLogLevel, cfg.Logging.Level)
	assert.Equal(t, map[string]string{
		"did:dht:abc": "https://pfi-a.example.com",
		"did:dht:def": "https://pfi-b.example.com",
	}, cfg.Counterparty.Endpoints)

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, time.Minute, cfg.Reconciler.PassBudget)
	assert.Equal(t, 3*time.Second, cfg.Reconciler.IdleInterval)
	assert.Equal(t, 180*time.Second, cfg.Reconciler.LockTTL)
	assert.Equal(t, "update-exchanges-lock.", cfg.Reconciler.LockKeyPrefix)
	assert.Equal(t, "sms_notifications", cfg.Kafka.NotificationTopic)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.WorkerPool.Size)

	cfgWithName, err := LoadConfigWithName("configs/test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfgWithName)
	assert.Equal(t, testAppName, cfgWithName.Application.Name)
}

func TestLoadConfig_InvalidEndpoints(t *testing.T) {
	t.Setenv("PFI_ENDPOINTS", "did:dht:abc")

	cfg, err := LoadConfig("does_not_exist")
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected did=url")
}

func TestConfig_Validate(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	newDefaultConfig := func() *Config {
		return &Config{
			Application: ApplicationConfig{Env: v.GetString("APP_ENV"), Name: v.GetString("APP_NAME")},
			Logging:     LoggingConfig{Level: v.GetString("LOG_LEVEL")},
			Server: ServerConfig{
				Port:            v.GetInt("SERVER_PORT"),
				ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
				ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
				WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
				IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			},
			Kafka: KafkaConfig{
				Brokers:           v.GetString("KAFKA_BROKERS"),
				NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
				ConsumerGroup:     v.GetString("KAFKA_CONSUMER_GROUP"),
				MinBytes:          v.GetInt("KAFKA_CONSUMER_MIN_BYTES"),
				MaxBytes:          v.GetInt("KAFKA_CONSUMER_MAX_BYTES"),
				MaxWait:           v.GetDuration("KAFKA_CONSUMER_MAX_WAIT"),
				DLQTopic:          v.GetString("KAFKA_DLQ_TOPIC"),
			},
			Postgres: PostgresConfig{
				URL:             v.GetString("POSTGRES_URL"),
				MaxConns:        int32(v.GetInt("POSTGRES_MAX_CONNS")),
				MinConns:        int32(v.GetInt("POSTGRES_MIN_CONNS")),
				ConnMaxLifetime: v.GetDuration("POSTGRES_MAX_CONN_LIFETIME"),
				ConnMaxIdleTime: v.GetDuration("POSTGRES_MAX_CONN_IDLE_TIME"),
			},
			MongoDB: MongoDBConfig{
				URI:         v.GetString("MONGO_URI"),
				Database:    v.GetString("MONGO_DATABASE"),
				Timeout:     v.GetDuration("MONGO_TIMEOUT"),
				MaxPoolSize: uint64(v.GetInt("MONGO_MAX_POOL_SIZE")),
			},
			Redis: RedisConfig{Addr: v.GetString("REDIS_ADDR")},
			Reconciler: ReconcilerConfig{
				PassBudget:       v.GetDuration("RECONCILER_PASS_BUDGET"),
				IdleInterval:     v.GetDuration("RECONCILER_IDLE_INTERVAL"),
				BatchSize:        v.GetInt("RECONCILER_BATCH_SIZE"),
				LockTTL:          v.GetDuration("RECONCILER_LOCK_TTL"),
				LockKeyPrefix:    v.GetString("RECONCILER_LOCK_KEY_PREFIX"),
				ScheduleInterval: v.GetDuration("RECONCILER_SCHEDULE_INTERVAL"),
				FetchTimeout:     v.GetDuration("RECONCILER_FETCH_TIMEOUT"),
			},
			WorkerPool:   WorkerPoolConfig{Size: v.GetInt("WORKER_POOL_SIZE")},
			Counterparty: CounterpartyConfig{RequestTimeout: v.GetDuration("COUNTERPARTY_REQUEST_TIMEOUT")},
			SMS: SMSConfig{
				BaseURL:   v.GetString("SMS_BASE_URL"),
				Shortcode: v.GetString("SMS_SHORTCODE"),
				Timeout:   v.GetDuration("SMS_TIMEOUT"),
			},
			Metrics: MetricsConfig{Port: v.GetInt("METRICS_PORT")},
		}
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, newDefaultConfig().validate())
	})

	t.Run("lock ttl must outlive the pass budget", func(t *testing.T) {
		cfg := newDefaultConfig()
		cfg.Reconciler.LockTTL = 30 * time.Second

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RECONCILER_LOCK_TTL must exceed RECONCILER_PASS_BUDGET")
	})

	t.Run("aggregates every violation", func(t *testing.T) {
		cfg := newDefaultConfig()
		cfg.Redis.Addr = ""
		cfg.Reconciler.BatchSize = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REDIS_ADDR is required")
		assert.Contains(t, err.Error(), "RECONCILER_BATCH_SIZE must be greater than 0")
	})
}

func TestParseEndpoints(t *testing.T) {
	endpoints, err := parseEndpoints(" did:dht:a=http://a/ , ,did:dht:b=http://b")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"did:dht:a": "http://a", "did:dht:b": "http://b"}, endpoints)

	endpoints, err = parseEndpoints("")
	require.NoError(t, err)
	assert.Empty(t, endpoints)

	_, err = parseEndpoints("=http://a")
	assert.Error(t, err)
}
