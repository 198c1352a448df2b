package config

import (
	"encoding/json"
	"os"

	"github.com/dkovalov/filegate/internal/flagx"
	"github.com/dkovalov/filegate/internal/timex"
)

// JSONConfig mirrors Config for unmarshalling. Duration fields accept both
// Go duration strings ("720h") and integer nanoseconds.
type JSONConfig struct {
	DatabaseDSN    *string         `json:"database_dsn"`
	SessionTTL     *timex.Duration `json:"session_ttl"`
	SweepInterval  *timex.Duration `json:"sweep_interval"`
	StoreTimeout   *timex.Duration `json:"store_timeout"`
	S3RootUser     *string         `json:"s3_root_user"`
	S3RootPassword *string         `json:"s3_root_password"`
	S3Bucket       *string         `json:"s3_bucket"`
	S3Region       *string         `json:"s3_region"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
}

// parseJSON overlays values from the JSON file named by -c/-config, if any.
// Absent fields keep their current (default) values. A missing or malformed
// file panics: a config file that was explicitly pointed at must be usable.
func parseJSON(config *Config) {

	jsonConfigFile := flagx.JSONConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.StoreTimeout != nil {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	if c.S3RootUser != nil {
		config.S3RootUser = *c.S3RootUser
	}
	if c.S3RootPassword != nil {
		config.S3RootPassword = *c.S3RootPassword
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
}
