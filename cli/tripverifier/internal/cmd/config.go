package cmd

import (
	"github.com/GNS-Foundation/trip-protocol/application"
	"github.com/GNS-Foundation/trip-protocol/internal/log"
	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// Address pairs a network ServerAddress with the request types the
// Verifier will accept there: breadcrumb submissions from Attesters on
// one port, and the relying-party verification/challenge-response/
// cancel flow on another.
type Address struct {
	*application.ServerAddress
	AllowSubmission   bool `toml:"allow_submission"`
	AllowVerification bool `toml:"allow_verification"`
}

func (a *Address) acceptableTypes() map[int]bool {
	accepted := make(map[int]bool)
	if a.AllowSubmission {
		accepted[protocol.SubmissionRequestType] = true
	}
	if a.AllowVerification {
		accepted[protocol.VerificationRequestType] = true
		accepted[protocol.ChallengeResponseType] = true
		accepted[protocol.CancelRequestType] = true
	}
	return accepted
}

// Config is the tripverifier executable's on-disk configuration.
type Config struct {
	*application.CommonConfig
	// DBPath is the directory the Verifier's LevelDB-backed storage
	// lives in.
	DBPath string `toml:"db_path"`
	// EpochIntervalSeconds controls how often the server base runs the
	// Challenge Coordinator's timeout sweep and evicts idle rate-limit
	// buckets.
	EpochIntervalSeconds uint64 `toml:"epoch_interval_seconds"`
	// Addresses are the network addresses the Verifier listens on.
	Addresses []*Address `toml:"addresses"`
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new Verifier configuration with the given
// addresses, logger configuration, storage directory, and epoch
// interval.
func NewConfig(addrs []*Address, logger *log.LoggerConfig, dbPath string, epochInterval uint64) *Config {
	return &Config{
		CommonConfig:         application.NewCommonConfig("", "toml", logger),
		Addresses:            addrs,
		DBPath:               dbPath,
		EpochIntervalSeconds: epochInterval,
	}
}

// GetPath returns the path the config was (or will be) loaded from.
func (conf *Config) GetPath() string {
	return conf.CommonConfig.Path
}

// Load reads the Verifier's configuration from file, decoded with the
// loader for encoding, and replaces conf's contents with the result.
func (conf *Config) Load(file, encoding string) error {
	tmp := &Config{CommonConfig: application.NewCommonConfig(file, encoding, &log.LoggerConfig{})}
	if err := tmp.GetLoader().Decode(tmp); err != nil {
		return err
	}
	*conf = *tmp
	return nil
}

// Save writes conf to its configured path using its configured loader.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// acceptableRequests builds the permission map application.ServerBase
// needs from conf's addresses.
func (conf *Config) acceptableRequests() map[*application.ServerAddress]map[int]bool {
	perms := make(map[*application.ServerAddress]map[int]bool, len(conf.Addresses))
	for _, addr := range conf.Addresses {
		perms[addr.ServerAddress] = addr.acceptableTypes()
	}
	return perms
}
