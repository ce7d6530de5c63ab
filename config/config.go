package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Game     GameConfig     `mapstructure:"game"`
	MapGen   MapGenConfig   `mapstructure:"mapgen"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver is one of gorm, postgres or memory.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// GameConfig holds the gameplay constants.
type GameConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	StartDelay   time.Duration `mapstructure:"start_delay"`
	ZoneLock     time.Duration `mapstructure:"zone_lock"`
	PointHitbox  float64       `mapstructure:"point_hitbox"`
	HomeHitbox   float64       `mapstructure:"home_hitbox"`
	WarningLead  time.Duration `mapstructure:"warning_lead"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	SaveRetries  int           `mapstructure:"save_retries"`
	MapTimeout   time.Duration `mapstructure:"map_timeout"`
	TickWorkers  int           `mapstructure:"tick_workers"`
}

type MapGenConfig struct {
	Points    int     `mapstructure:"points"`
	MinFactor float64 `mapstructure:"min_factor"`
	Seed      uint64  `mapstructure:"seed"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:    ":8080",
			RPCAddress:     ":8081",
			MetricsAddress: ":9090",
		},
		Database: DatabaseConfig{
			Driver: "gorm",
			Postgres: PostgresConfig{
				Host:   "localhost",
				Port:   5432,
				User:   "zon",
				DBName: "zon",
			},
		},
		Game: DefaultGame(),
		MapGen: MapGenConfig{
			Points:    20,
			MinFactor: 0.15,
		},
	}
}

func DefaultGame() GameConfig {
	return GameConfig{
		TickInterval: 3 * time.Second,
		StartDelay:   5 * time.Second,
		ZoneLock:     time.Minute,
		PointHitbox:  30,
		HomeHitbox:   50,
		WarningLead:  10 * time.Minute,
		StoreTimeout: 5 * time.Second,
		SaveRetries:  5,
		MapTimeout:   15 * time.Second,
		TickWorkers:  16,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.http_address", d.Server.HTTPAddress)
	v.SetDefault("server.rpc_address", d.Server.RPCAddress)
	v.SetDefault("server.metrics_address", d.Server.MetricsAddress)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.postgres.host", d.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", d.Database.Postgres.Port)
	v.SetDefault("database.postgres.user", d.Database.Postgres.User)
	v.SetDefault("database.postgres.password", d.Database.Postgres.Password)
	v.SetDefault("database.postgres.dbname", d.Database.Postgres.DBName)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("game.tick_interval", d.Game.TickInterval)
	v.SetDefault("game.start_delay", d.Game.StartDelay)
	v.SetDefault("game.zone_lock", d.Game.ZoneLock)
	v.SetDefault("game.point_hitbox", d.Game.PointHitbox)
	v.SetDefault("game.home_hitbox", d.Game.HomeHitbox)
	v.SetDefault("game.warning_lead", d.Game.WarningLead)
	v.SetDefault("game.store_timeout", d.Game.StoreTimeout)
	v.SetDefault("game.save_retries", d.Game.SaveRetries)
	v.SetDefault("game.map_timeout", d.Game.MapTimeout)
	v.SetDefault("game.tick_workers", d.Game.TickWorkers)
	v.SetDefault("mapgen.points", d.MapGen.Points)
	v.SetDefault("mapgen.min_factor", d.MapGen.MinFactor)
	v.SetDefault("mapgen.seed", d.MapGen.Seed)
}

// LoadConfig reads config.yaml from path, then .env, then ZON_* environment
// variables. A missing config file is not an error.
func LoadConfig(path string) (config *Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("zon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
