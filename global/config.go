package global

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"WChat/logger"
	"WChat/tools/ids"
	"WChat/tools/security"
)

// AppConfig is the process-wide configuration. Values come from defaults,
// then an optional config file, then WCHAT_* environment variables.
type AppConfig struct {
	NodeID   int64  `mapstructure:"node_id"`
	HTTPAddr string `mapstructure:"http_addr"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Gateway tuning. Ping interval and client timeout are protocol
	// constants; they are only configurable so tests can shrink them.
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
	SendQueueSize int           `mapstructure:"send_queue_size"`
}

var Conf = defaults()

func defaults() AppConfig {
	return AppConfig{
		NodeID:        1,
		HTTPAddr:      ":8080",
		// dev placeholder only; set WCHAT_JWT_SECRET in any real deployment
		JWTSecret:     "insecure-dev-secret-change-me",
		TokenTTL:      2 * time.Hour,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "waichat",
		RedisAddr:     "",
		RedisDB:       0,
		PingInterval:  5 * time.Second,
		ClientTimeout: 10 * time.Second,
		SendQueueSize: 256,
	}
}

// Load reads configuration into Conf. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) error {
	v := viper.New()

	d := defaults()
	v.SetDefault("node_id", d.NodeID)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("jwt_secret", d.JWTSecret)
	v.SetDefault("token_ttl", d.TokenTTL)
	v.SetDefault("mongo_uri", d.MongoURI)
	v.SetDefault("mongo_database", d.MongoDatabase)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_password", d.RedisPassword)
	v.SetDefault("redis_db", d.RedisDB)
	v.SetDefault("ping_interval", d.PingInterval)
	v.SetDefault("client_timeout", d.ClientTimeout)
	v.SetDefault("send_queue_size", d.SendQueueSize)

	v.SetEnvPrefix("WCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
		logger.Infof("config loaded from %s", path)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	Conf = cfg

	ids.SetNodeID(cfg.NodeID)
	return nil
}

// JWTOptions returns the signing options derived from config.
func JWTOptions() security.Options {
	opts := security.DefaultOptions([]byte(Conf.JWTSecret))
	opts.TTL = Conf.TokenTTL
	return opts
}
