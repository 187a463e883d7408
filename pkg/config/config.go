package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	// Gateway holds payment gateway credentials. Hosting environments are known
	// to inject these wrapped in stray quotes; they are normalized before use.
	Gateway struct {
		BaseURL       string `mapstructure:"BASE_URL"`
		KeyID         string `mapstructure:"KEY_ID"`
		KeySecret     string `mapstructure:"KEY_SECRET"`
		WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
	} `mapstructure:"GATEWAY"`
	Payout struct {
		Currency     string   `mapstructure:"CURRENCY"`
		AdminUserIDs []string `mapstructure:"ADMIN_USER_IDS"`
		SummaryHour  int      `mapstructure:"SUMMARY_HOUR"`
	} `mapstructure:"PAYOUT"`
	AbuseGuard struct {
		VerifyMaxPerMinute int           `mapstructure:"VERIFY_MAX_PER_MINUTE"`
		VerifyCooldown     time.Duration `mapstructure:"VERIFY_COOLDOWN"`
	} `mapstructure:"ABUSE_GUARD"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config file", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Payout.Currency == "" {
		cfg.Payout.Currency = "INR"
	}
	if cfg.Payout.SummaryHour == 0 {
		cfg.Payout.SummaryHour = 6
	}
	if cfg.AbuseGuard.VerifyMaxPerMinute == 0 {
		cfg.AbuseGuard.VerifyMaxPerMinute = 10
	}
	if cfg.AbuseGuard.VerifyCooldown == 0 {
		cfg.AbuseGuard.VerifyCooldown = 5 * time.Second
	}
}
