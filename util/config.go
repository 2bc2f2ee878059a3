package util

import (
	"crypto/subtle"
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const Name = "socialdistance"
const ConfigFileName = "config.yaml"
const EnvPrefix = "SOCIALDISTANCE_"

//go:embed config_default.yaml
var embeddedConfig []byte

// Node is a peer server we federate with. Requests to its host carry these basic
// auth credentials, and it may use the same credentials against our inboxes.
type Node struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AppConfig struct {
	Conf struct {
		Host             string
		HttpPort         int           `yaml:"httpPort"`
		PublicUrl        string        `yaml:"publicUrl"`
		Database         string        `yaml:"database"`
		JwtSecret        string        `yaml:"jwtSecret"`
		TokenTtl         time.Duration `yaml:"tokenTtl"`
		WithFederation   bool          `yaml:"withFederation"`
		DeliveryInterval time.Duration `yaml:"deliveryInterval"`
		LogLevel         string        `yaml:"logLevel"`
		LogPretty        bool          `yaml:"logPretty"`
		RateLimit        float64       `yaml:"rateLimit"`
		RateBurst        int           `yaml:"rateBurst"`
		Redis            struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
		Nodes []Node `yaml:"nodes"`
	}
}

func ReadConf() (*AppConfig, error) {
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	c, err := ParseConf(buf)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

// ParseConf decodes a YAML document on top of the embedded defaults.
func ParseConf(buf []byte) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(embeddedConfig, c); err != nil {
		return nil, fmt.Errorf("in embedded config: %w", err)
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}
	return c, nil
}

func (c *AppConfig) applyEnv(getenv func(string) string) error {
	env := func(name string) string { return getenv(EnvPrefix + name) }

	if v := env("HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := env("HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTPPORT: %w", EnvPrefix, err)
		}
		c.Conf.HttpPort = port
	}
	if v := env("PUBLICURL"); v != "" {
		c.Conf.PublicUrl = v
	}
	if v := env("DATABASE"); v != "" {
		c.Conf.Database = v
	}
	if v := env("JWTSECRET"); v != "" {
		c.Conf.JwtSecret = v
	}
	if v := env("WITH_FEDERATION"); v != "" {
		c.Conf.WithFederation = v == "true"
	}
	if v := env("LOGLEVEL"); v != "" {
		c.Conf.LogLevel = v
	}
	if v := env("REDIS_ADDRESS"); v != "" {
		c.Conf.Redis.Address = v
	}
	if v := env("KAFKA_BROKERS"); v != "" {
		c.Conf.Kafka.Brokers = strings.Split(v, ",")
	}
	return nil
}

func (c *AppConfig) applyDefaults() {
	if c.Conf.PublicUrl == "" {
		c.Conf.PublicUrl = fmt.Sprintf("http://%s:%d/", c.Conf.Host, c.Conf.HttpPort)
	}
	if !strings.HasSuffix(c.Conf.PublicUrl, "/") {
		c.Conf.PublicUrl += "/"
	}
	if c.Conf.Database == "" {
		c.Conf.Database = ResolveFilePath("database.db")
	}
	if c.Conf.TokenTtl <= 0 {
		c.Conf.TokenTtl = 24 * time.Hour
	}
	if c.Conf.DeliveryInterval <= 0 {
		c.Conf.DeliveryInterval = 10 * time.Second
	}
	if c.Conf.RateLimit <= 0 {
		c.Conf.RateLimit = 10
	}
	if c.Conf.RateBurst <= 0 {
		c.Conf.RateBurst = 20
	}
	if c.Conf.JwtSecret == "" {
		log.Printf("Warning: no jwtSecret configured, generating an ephemeral one")
		c.Conf.JwtSecret = RandomString(48)
	}
}

// NodeFor returns the configured peer node whose host matches the host of rawURL.
func (c *AppConfig) NodeFor(rawURL string) (Node, bool) {
	for _, n := range c.Conf.Nodes {
		if n.Host != "" && strings.HasPrefix(rawURL, strings.TrimRight(n.Host, "/")+"/") {
			return n, true
		}
	}
	return Node{}, false
}

// NodeByCredentials finds the peer node matching the given basic auth pair.
func (c *AppConfig) NodeByCredentials(username, password string) (Node, bool) {
	for _, n := range c.Conf.Nodes {
		if n.Username != "" &&
			subtle.ConstantTimeCompare([]byte(n.Username), []byte(username)) == 1 &&
			subtle.ConstantTimeCompare([]byte(n.Password), []byte(password)) == 1 {
			return n, true
		}
	}
	return Node{}, false
}
