package main

import (
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the worker configuration, loadable from environment
// variables (SHOP_NOTIFY_ prefix) or YAML config files.
type Config struct {
	Brokers []string `default:"localhost:9092" usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"orders.placed" usage:"Order notification topic"`
	Group   string   `default:"storefront-notify" usage:"Consumer group"`
	From    string   `default:"no-reply@example.com" usage:"Sender address of confirmations"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP_NOTIFY",
		Files:     []string{"notify.yaml", "/etc/storefront/notify.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.Group == "" {
		return nil, errors.New("brokers, topic and group are required")
	}
	return &cfg, nil
}
