package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralParams    GeneralParams
	AdminParams      AdminParams
	DiscordParams    DiscordParams
	HttpServerParams HttpServerParams
	MainDBParams     MainDBParams
	S3Params         S3Params
	RedisParams      RedisParams
	CooldownParams   CooldownParams
	ReconcileParams  ReconcileParams
}

type GeneralParams struct {
	Env       string
	LogLevel  string
	SecretKey string
}

type AdminParams struct {
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
}

type DiscordParams struct {
	Token         string
	CommandPrefix string
	// TextChannels pairs every room with a private text channel
	TextChannels bool
	// AccessRoles grants text access through a per-room role
	AccessRoles          bool
	DefaultModeratorRole string
	SupportHint          string
	EventTimeout         time.Duration
}

type HttpServerParams struct {
	Address        string
	Port           string
	AllowedOrigins []string
}

type MainDBParams struct {
	Username string
	Password string
	Name     string
	Port     int
	Host     string
	Timeout  int
	MaxConns int32
}

type S3Params struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

type RedisParams struct {
	Addr     string
	Password string
	DB       int
}

type CooldownParams struct {
	Enabled     bool
	MaxCommands int
	Window      time.Duration
}

type ReconcileParams struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	Grace    time.Duration
}

type ConfigManager struct {
	v      *viper.Viper
	config *Config
}

// NewConfigManager creates new config manager that handles
// all viper config options and loads a config from yaml
func NewConfigManager(configPath string) (*ConfigManager, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cm := &ConfigManager{v: v}

	if err := cm.loadConfig(); err != nil {
		return nil, err
	}

	return cm, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general_params.env", "dev")
	v.SetDefault("admin_params.username", "admin")
	v.SetDefault("admin_params.token_ttl", "1h")
	v.SetDefault("discord_params.command_prefix", ".")
	v.SetDefault("discord_params.text_channels", true)
	v.SetDefault("discord_params.event_timeout", "15s")
	v.SetDefault("http_server_params.http_server_address", "0.0.0.0")
	v.SetDefault("http_server_params.http_server_port", "8080")
	v.SetDefault("main_db_params.db_port", 5432)
	v.SetDefault("main_db_params.db_timeout", 5)
	v.SetDefault("main_db_params.max_conns", 10)
	v.SetDefault("redis_params.addr", "localhost:6379")
	v.SetDefault("cooldown_params.max_commands", 5)
	v.SetDefault("cooldown_params.window", "10s")
	v.SetDefault("reconcile_params.interval", "5m")
	v.SetDefault("reconcile_params.timeout", "1m")
	v.SetDefault("reconcile_params.grace", "1m")
}

// Extracting data from yaml file and loading into Config
func (cm *ConfigManager) loadConfig() error {
	cm.config = &Config{
		GeneralParams: GeneralParams{
			Env:       cm.v.GetString("general_params.env"),
			LogLevel:  cm.v.GetString("general_params.log_level"),
			SecretKey: cm.v.GetString("general_params.secret_key"),
		},
		AdminParams: AdminParams{
			Username:     cm.v.GetString("admin_params.username"),
			PasswordHash: cm.v.GetString("admin_params.password_hash"),
			TokenTTL:     cm.v.GetDuration("admin_params.token_ttl"),
		},
		DiscordParams: DiscordParams{
			Token:                cm.v.GetString("discord_params.token"),
			CommandPrefix:        cm.v.GetString("discord_params.command_prefix"),
			TextChannels:         cm.v.GetBool("discord_params.text_channels"),
			AccessRoles:          cm.v.GetBool("discord_params.access_roles"),
			DefaultModeratorRole: cm.v.GetString("discord_params.default_moderator_role"),
			SupportHint:          cm.v.GetString("discord_params.support_hint"),
			EventTimeout:         cm.v.GetDuration("discord_params.event_timeout"),
		},
		HttpServerParams: HttpServerParams{
			Address:        cm.v.GetString("http_server_params.http_server_address"),
			Port:           cm.v.GetString("http_server_params.http_server_port"),
			AllowedOrigins: cm.v.GetStringSlice("http_server_params.allowed_origins"),
		},
		MainDBParams: MainDBParams{
			Username: cm.v.GetString("main_db_params.db_username"),
			Password: cm.v.GetString("main_db_params.db_password"),
			Name:     cm.v.GetString("main_db_params.db_name"),
			Port:     cm.v.GetInt("main_db_params.db_port"),
			Host:     cm.v.GetString("main_db_params.db_host"),
			Timeout:  cm.v.GetInt("main_db_params.db_timeout"),
			MaxConns: cm.v.GetInt32("main_db_params.max_conns"),
		},
		S3Params: S3Params{
			Enabled:         cm.v.GetBool("s3_params.enabled"),
			Endpoint:        cm.v.GetString("s3_params.endpoint"),
			AccessKeyID:     cm.v.GetString("s3_params.access_key_id"),
			SecretAccessKey: cm.v.GetString("s3_params.secret_access_key"),
			UseSSL:          cm.v.GetBool("s3_params.use_ssl"),
			BucketName:      cm.v.GetString("s3_params.bucket_name"),
			Region:          cm.v.GetString("s3_params.region"),
		},
		RedisParams: RedisParams{
			Addr:     cm.v.GetString("redis_params.addr"),
			Password: cm.v.GetString("redis_params.password"),
			DB:       cm.v.GetInt("redis_params.db"),
		},
		CooldownParams: CooldownParams{
			Enabled:     cm.v.GetBool("cooldown_params.enabled"),
			MaxCommands: cm.v.GetInt("cooldown_params.max_commands"),
			Window:      cm.v.GetDuration("cooldown_params.window"),
		},
		ReconcileParams: ReconcileParams{
			Enabled:  cm.v.GetBool("reconcile_params.enabled"),
			Interval: cm.v.GetDuration("reconcile_params.interval"),
			Timeout:  cm.v.GetDuration("reconcile_params.timeout"),
			Grace:    cm.v.GetDuration("reconcile_params.grace"),
		},
	}
	return nil
}

// Geting config instance
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// Compiling a string to connect to main_db
func (db *MainDBParams) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=%d&sslmode=disable",
		db.Username,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Timeout,
	)
}

func (h *HttpServerParams) GetAddress() string {
	return fmt.Sprintf(
		"%s:%s",
		h.Address,
		h.Port,
	)
}

// NeedsRedis reports whether any enabled component talks to redis
func (c *Config) NeedsRedis() bool {
	return c.CooldownParams.Enabled || c.ReconcileParams.Enabled
}

func (c *Config) Validate() error {
	// Checking secret key
	if len(c.GeneralParams.SecretKey) < 32 {
		return fmt.Errorf("parameter secret_key is required and must be at least 32 characters")
	}

	// Checking out enviroment variable
	switch c.GeneralParams.Env {
	case "dev", "prod", "test":
	default:
		return fmt.Errorf("env parameter is invalid: %s. try dev/prod/test instead", c.GeneralParams.Env)
	}

	if c.AdminParams.Username == "" {
		return fmt.Errorf("admin username is required")
	}
	if c.AdminParams.TokenTTL <= 0 {
		return fmt.Errorf("admin token_ttl must be positive")
	}

	if c.DiscordParams.Token == "" {
		return fmt.Errorf("discord token is required")
	}
	if c.DiscordParams.CommandPrefix == "" {
		return fmt.Errorf("discord command_prefix is required")
	}
	if c.DiscordParams.AccessRoles && !c.DiscordParams.TextChannels {
		return fmt.Errorf("discord access_roles requires text_channels")
	}

	// Checking http server parameters
	if c.HttpServerParams.Address == "" {
		return fmt.Errorf("http server address is required")
	}
	if c.HttpServerParams.Port == "" {
		return fmt.Errorf("http server port is required")
	}

	// Checking MainDbparams
	for name, mainDbConf := range map[string]MainDBParams{
		"MainDB": c.MainDBParams,
	} {
		if mainDbConf.Host == "" {
			return fmt.Errorf("%s: host is required", name)
		}
		if mainDbConf.Username == "" {
			return fmt.Errorf("%s: username is required", name)
		}
		if mainDbConf.Password == "" {
			return fmt.Errorf("%s: password is requred", name)
		}
		if mainDbConf.Port <= 0 || mainDbConf.Port > 65535 {
			return fmt.Errorf("%s: port is invalid", name)
		}
	}

	// Checking S3 params
	if c.S3Params.Enabled {
		if c.S3Params.Endpoint == "" {
			return fmt.Errorf("S3 endpoint is required")
		}
		if c.S3Params.AccessKeyID == "" {
			return fmt.Errorf("S3 access_key id is required")
		}
		if c.S3Params.SecretAccessKey == "" {
			return fmt.Errorf("S3 secret_access_key is required")
		}
		if c.S3Params.BucketName == "" {
			return fmt.Errorf("S3 bucket name is required")
		}
	}

	if c.NeedsRedis() && c.RedisParams.Addr == "" {
		return fmt.Errorf("redis addr is required when cooldown or reconcile is enabled")
	}

	if c.CooldownParams.Enabled {
		if c.CooldownParams.MaxCommands <= 0 {
			return fmt.Errorf("cooldown max_commands must be positive")
		}
		if c.CooldownParams.Window <= 0 {
			return fmt.Errorf("cooldown window must be positive")
		}
	}

	if c.ReconcileParams.Enabled && c.ReconcileParams.Interval < time.Minute {
		return fmt.Errorf("reconcile interval must be at least a minute")
	}

	return nil
}
