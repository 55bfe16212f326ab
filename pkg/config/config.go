package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                    string
	Env                     string
	JWTSecret               string
	JWTTTL                  time.Duration
	PostgresConnStr         string
	MongoURI                string
	MongoDB                 string
	RedisAddr               string
	RedisPassword           string
	FirebaseCredentialsPath string
	FCMServiceAccountJSON   string
	SentryDSN               string
	OTLPEndpoint            string
	RateLimitRPS            float64
	RateLimitBurst          int
	PushWorkers             int
	PushQueueSize           int
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("JWT_SECRET", "supersecretjwtkey")
	v.SetDefault("JWT_TTL", "8760h")
	v.SetDefault("MONGO_DB", "socialmedia")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("PUSH_WORKERS", 4)
	v.SetDefault("PUSH_QUEUE_SIZE", 256)

	return &Config{
		Port:                    v.GetString("PORT"),
		Env:                     v.GetString("ENV"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		JWTTTL:                  v.GetDuration("JWT_TTL"),
		PostgresConnStr:         v.GetString("POSTGRES_CONN_STR"),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDB:                 v.GetString("MONGO_DB"),
		RedisAddr:               v.GetString("REDIS_ADDR"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FCMServiceAccountJSON:   v.GetString("FCM_SERVICE_ACCOUNT_JSON"),
		SentryDSN:               v.GetString("SENTRY_DSN"),
		OTLPEndpoint:            v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPS:            v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:          v.GetInt("RATE_LIMIT_BURST"),
		PushWorkers:             v.GetInt("PUSH_WORKERS"),
		PushQueueSize:           v.GetInt("PUSH_QUEUE_SIZE"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
