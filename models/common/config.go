package common

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"github.com/spf13/viper"

	"github.com/simple-thread/pharos/util"
)

type Config struct {
	ConfigName              string
	DBPath                  string
	ListenAddress           string
	LogDir                  string
	LogLevel                logging.Level
	MaxDaysSinceFixityCheck int
	NsqURL                  string
	PidFilePath             string
	RedisDefaultDB          int
	RedisPassword           string
	RedisURL                string
	TokenFile               string
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// NewConfig returns a config loaded from .env.<name> in the directory
// named by env var PHAROS_CONFIG_DIR, where <name> comes from env var
// PHAROS_CONFIG. It panics on a missing or unreadable config, since
// nothing can run without one.
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir := getRequiredEnvVar("PHAROS_CONFIG_DIR")
	envName := getRequiredEnvVar("PHAROS_CONFIG")
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	return &Config{
		ConfigName:              envName,
		DBPath:                  v.GetString("DB_PATH"),
		ListenAddress:           v.GetString("LISTEN_ADDRESS"),
		LogDir:                  v.GetString("LOG_DIR"),
		LogLevel:                logLevels[v.GetString("LOG_LEVEL")],
		MaxDaysSinceFixityCheck: v.GetInt("MAX_DAYS_SINCE_LAST_FIXITY"),
		NsqURL:                  v.GetString("NSQ_URL"),
		PidFilePath:             v.GetString("PID_FILE"),
		RedisDefaultDB:          v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisURL:                v.GetString("REDIS_URL"),
		TokenFile:               v.GetString("TOKEN_FILE"),
	}
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.DBPath = expandPath(c.DBPath)
	c.LogDir = expandPath(c.LogDir)
	c.PidFilePath = expandPath(c.PidFilePath)
	c.TokenFile = expandPath(c.TokenFile)
}

func expandPath(dirName string) string {
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

func (c *Config) makeDirs() {
	if c.LogDir != "" {
		if err := os.MkdirAll(c.LogDir, 0755); err != nil {
			panic(err)
		}
	}
}
