package common

import (
	"fmt"

	"github.com/op/go-logging"

	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/network"
	"github.com/simple-thread/pharos/util/logger"
)

// Context bundles the shared resources every server component needs:
// config, logger, the registry store and the queue and cache clients.
type Context struct {
	Config      *Config
	Logger      *logging.Logger
	Store       *db.Store
	NSQClient   *network.NSQClient
	RedisClient *network.RedisClient
}

func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	return &Context{
		Config:      config,
		Logger:      _logger,
		Store:       getStore(config),
		NSQClient:   network.NewNSQClient(config.NsqURL),
		RedisClient: getRedisClient(config),
	}
}

func getLogger(config *Config) *logging.Logger {
	logger, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return logger
}

func getStore(config *Config) *db.Store {
	store, err := db.Open(config.DBPath)
	if err != nil {
		panic(fmt.Sprintf("Could not open registry database at %s: %v", config.DBPath, err))
	}
	return store
}

func getRedisClient(config *Config) *network.RedisClient {
	if config.RedisURL == "" {
		return nil
	}
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}
