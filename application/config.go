package application

import (
	"fmt"
	"io/ioutil"

	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/internal/log"
	"github.com/GNS-Foundation/trip-protocol/utils"
)

// AppConfig provides an abstraction of the underlying encoding format
// for the Verifier's on-disk configuration.
type AppConfig interface {
	Load(file, encoding string) error
	Save() error
	GetPath() string
}

// CommonConfig is the generic type embedded by the Verifier's
// executable-level config. It holds the file path, logger
// configuration, and config loader shared by every TRIP executable.
type CommonConfig struct {
	Path     string
	Logger   *log.LoggerConfig `toml:"logger"`
	Encoding string
	loader   ConfigLoader
}

// NewCommonConfig initializes an application's config file path, its
// loader for the given encoding, and the logger configuration.
// Note: this constructor must be called in each Load() method
// implementation of an AppConfig.
func NewCommonConfig(file, encoding string, logger *log.LoggerConfig) *CommonConfig {
	return &CommonConfig{
		Path:     file,
		Logger:   logger,
		Encoding: encoding,
		loader:   newConfigLoader(encoding),
	}
}

// GetLoader returns the config's loader.
func (conf *CommonConfig) GetLoader() ConfigLoader {
	return conf.loader
}

// LoadSigningPubKey loads a public signing key at the given path
// specified in the given config file. If there is any parsing error or
// the key is malformed, LoadSigningPubKey returns an error with a nil
// key.
func LoadSigningPubKey(path, file string) (sign.PublicKey, error) {
	signPath := utils.ResolvePath(path, file)
	raw, err := ioutil.ReadFile(signPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read signing key: %v", err)
	}
	if len(raw) != sign.PublicKeySize {
		return nil, fmt.Errorf("signing public key must be %d bytes (got %d)", sign.PublicKeySize, len(raw))
	}
	return sign.PublicKey(raw), nil
}
