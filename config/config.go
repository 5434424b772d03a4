package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/anyproto/any-mirror/app"
	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/feed"
	"github.com/anyproto/any-mirror/metric"
	"github.com/anyproto/any-mirror/mirror"
)

const CName = "config"

var log = logger.NewNamed(CName)

func NewFromFile(path string) (c *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes yaml data on top of the defaults
func Parse(data []byte) (c *Config, err error) {
	c = Default()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return
}

func Default() *Config {
	return &Config{
		Log:    logger.Config{DefaultLevel: "info", Format: logger.ColorizedOutput},
		Mirror: mirror.Config{Name: "mirror", IdStrategy: "random", ReplacePolicy: "strict"},
		Feed:   feed.Config{QueueSize: 1024},
	}
}

type Config struct {
	Log    logger.Config `yaml:"log"`
	Metric metric.Config `yaml:"metric"`
	Mirror mirror.Config `yaml:"mirror"`
	Feed   feed.Config   `yaml:"feed"`
}

func (c *Config) Init(a *app.App) (err error) {
	log.Debug("config loaded",
		zap.String("mirror", c.Mirror.Name),
		zap.String("idStrategy", c.Mirror.IdStrategy),
		zap.String("snapshot", c.Mirror.SnapshotPath),
		zap.String("metricAddr", c.Metric.Addr),
	)
	return
}

func (c *Config) Name() (name string) {
	return CName
}

func (c *Config) GetLog() logger.Config {
	return c.Log
}

func (c *Config) GetMetric() metric.Config {
	return c.Metric
}

func (c *Config) GetMirror() mirror.Config {
	return c.Mirror
}

func (c *Config) GetFeed() feed.Config {
	return c.Feed
}
