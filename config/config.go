package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Save     SaveConfig     `mapstructure:"save"`
}

type ServerConfig struct {
	Debug bool `mapstructure:"debug"`
}

type DataConfig struct {
	DataPath      string `mapstructure:"data_path"`
	SkillsFile    string `mapstructure:"skills_file"`    // Skills.json or Skills.yaml
	FormationFile string `mapstructure:"formation_file"` // Formation.json or Formation.yaml
}

type BattleConfig struct {
	CenterX      float64   `mapstructure:"center_x"`
	PxPerSec     float64   `mapstructure:"px_per_sec"`
	AllyX        float64   `mapstructure:"ally_x"`
	EnemyX       float64   `mapstructure:"enemy_x"`
	LaneY        []float64 `mapstructure:"lane_y"`
	DefaultSkill string    `mapstructure:"default_skill"`
	TickMs       int       `mapstructure:"tick_ms"`
	Seed         int64     `mapstructure:"seed"` // 0 = time-based
	// CommandDelayTicks is how long the headless host leaves a unit parked
	// in COMMAND before auto-confirming "fight". Negative disables autoplay.
	CommandDelayTicks int  `mapstructure:"command_delay_ticks"`
	MaxTicks          int  `mapstructure:"max_ticks"`
	Realtime          bool `mapstructure:"realtime"`
	MessageLogSize    int  `mapstructure:"message_log_size"`
}

type FeedbackConfig struct {
	EffectTTL time.Duration `mapstructure:"effect_ttl"`
	MarkerTTL time.Duration `mapstructure:"marker_ttl"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
	SlotTTL         time.Duration `mapstructure:"slot_ttl"`
}

type SaveConfig struct {
	Slot       int    `mapstructure:"slot"`
	PlayerName string `mapstructure:"player_name"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.debug", false)
	v.SetDefault("data.data_path", "./data")
	v.SetDefault("data.skills_file", "Skills.json")
	v.SetDefault("data.formation_file", "Formation.json")
	v.SetDefault("battle.center_x", 400)
	v.SetDefault("battle.px_per_sec", 180)
	v.SetDefault("battle.ally_x", 120)
	v.SetDefault("battle.enemy_x", 680)
	v.SetDefault("battle.lane_y", []float64{360, 300, 240})
	v.SetDefault("battle.default_skill", "melee_punch")
	v.SetDefault("battle.tick_ms", 16)
	v.SetDefault("battle.seed", 0)
	v.SetDefault("battle.command_delay_ticks", 30)
	v.SetDefault("battle.max_ticks", 100000)
	v.SetDefault("battle.realtime", false)
	v.SetDefault("battle.message_log_size", 8)
	v.SetDefault("feedback.effect_ttl", "500ms")
	v.SetDefault("feedback.marker_ttl", "1s")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/saves.db")
	v.SetDefault("database.mysql_max_open", 10)
	v.SetDefault("database.mysql_max_idle", 2)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("cache.slot_ttl", "10m")
	v.SetDefault("save.slot", 1)
	v.SetDefault("save.player_name", "Player")
}
