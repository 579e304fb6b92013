package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Transaction TransactionConfig `mapstructure:"transaction"`
	Lease       LeaseConfig       `mapstructure:"lease"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// TransactionConfig 审批事务配置
type TransactionConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LeaseConfig 租期与账单策略
type LeaseConfig struct {
	AllowedDurations    []int  `mapstructure:"allowed_durations"`
	AllowCustomDuration bool   `mapstructure:"allow_custom_duration"`
	BillingAnchor       string `mapstructure:"billing_anchor"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	Burst             int `mapstructure:"burst"`
}

// NotifierConfig 审批结果通知通道
type NotifierConfig struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Channel       string `mapstructure:"channel"`
}

type WorkerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	OverdueCron   string `mapstructure:"overdue_cron"`
	ReconcileCron string `mapstructure:"reconcile_cron"`
	RepairDrift   bool   `mapstructure:"repair_drift"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.dbname", "rental")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("transaction.timeout", 10*time.Second)
	v.SetDefault("transaction.max_retries", 3)

	v.SetDefault("lease.allowed_durations", []int{1, 3, 6, 9, 12, 18, 24, 36})
	v.SetDefault("lease.allow_custom_duration", false)
	v.SetDefault("lease.billing_anchor", "arrears")

	v.SetDefault("auth.issuer", "rental-management")

	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.channel", "rental.transitions")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.overdue_cron", "0 1 * * *")
	v.SetDefault("worker.reconcile_cron", "*/30 * * * *")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "development")
	v.SetDefault("logging.service_name", "rental-management")
}

// Load 读取 ./configs/config.yaml，并允许环境变量覆盖（DATABASE_HOST 等）
func Load() (*Config, error) {
	return LoadFrom("./configs")
}

func LoadFrom(paths ...string) (*Config, error) {
	// .env 可选
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
