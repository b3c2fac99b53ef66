package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIAddr  string `envconfig:"API_ADDR" default:"http://localhost:8080"`
	GrpcAddr string `envconfig:"GRPC_ADDR" default:"localhost:9090"`
	// E2E_DEBUG_JSON allows dumping full request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_INDEX_WAIT bounds how long a message may take to become searchable
	IndexWait string `envconfig:"E2E_INDEX_WAIT" default:"15s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
