package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/flagx"
	"github.com/dmitrijs2005/sealbox/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept either Go
// duration strings ("15m") or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	MasterKey                   string         `json:"master_key"`
	StorageBackend              string         `json:"storage_backend"`
	StorageDir                  string         `json:"storage_dir"`
	ScratchDir                  string         `json:"scratch_dir"`
	DefaultExpiry               timex.Duration `json:"default_expiry"`
	MaxUploadSize               int64          `json:"max_upload_size"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisPassword               string         `json:"redis_password"`
	CacheTTL                    timex.Duration `json:"cache_ttl"`
	PublicBaseURL               string         `json:"public_base_url"`
	OwnerMetadataAfterExpiry    *bool          `json:"owner_metadata_after_expiry"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Keys absent from the file leave the current value in place.
// An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.MasterKey, c.MasterKey)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.StorageDir, c.StorageDir)
	setString(&config.ScratchDir, c.ScratchDir)
	setDuration(&config.DefaultExpiry, c.DefaultExpiry)
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setDuration(&config.CacheTTL, c.CacheTTL)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	if c.OwnerMetadataAfterExpiry != nil {
		config.OwnerMetadataAfterExpiry = *c.OwnerMetadataAfterExpiry
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
