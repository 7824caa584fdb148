package server

import (
	"fmt"
	"os"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
)

// A Config contains configuration values
// which are read at initialization time from
// a TOML format configuration file.
type Config struct {
	*application.CommonConfig
	// DBPath is the path to the server's persistent log storage.
	DBPath string `toml:"db_path"`
	// Policies contains the server's keytrace policies configuration.
	Policies *Policies `toml:"policies"`
	// Addresses contains the server's connections configuration.
	Addresses []*Address `toml:"addresses"`
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new server configuration at the given
// file path, with the given config encoding, server addresses,
// logger configuration, database path and server application policies.
func NewConfig(file, encoding string, addrs []*Address,
	logConfig *application.LoggerConfig, dbPath string,
	policies *Policies) *Config {
	var conf = Config{
		CommonConfig: application.NewCommonConfig(file, encoding, logConfig),
		DBPath:       dbPath,
		Addresses:    addrs,
		Policies:     policies,
	}

	return &conf
}

// Load initializes a server configuration from the given file
// using the given encoding. It reads the signing key pair and the
// VRF key pair into the Config instance and updates the path of
// TLS certificate files of each Address to absolute path.
func (conf *Config) Load(file, encoding string) error {
	conf.CommonConfig = application.NewCommonConfig(file, encoding, nil)
	if err := conf.GetLoader().Decode(conf); err != nil {
		return err
	}

	// load signing key
	signPath := utils.ResolvePath(conf.Policies.SignKeyPath, file)
	signKey, err := os.ReadFile(signPath)
	if err != nil {
		return fmt.Errorf("Cannot read signing key: %v", err)
	}
	if len(signKey) != sign.PrivateKeySize {
		return fmt.Errorf("Signing key must be 64 bytes (got %d)", len(signKey))
	}

	// load VRF key
	vrfPath := utils.ResolvePath(conf.Policies.VRFKeyPath, file)
	vrfKey, err := os.ReadFile(vrfPath)
	if err != nil {
		return fmt.Errorf("Cannot read VRF key: %v", err)
	}
	if len(vrfKey) != vrf.PrivateKeySize {
		return fmt.Errorf("VRF key must be 64 bytes (got %d)", len(vrfKey))
	}

	conf.Policies.signKey = signKey
	copy(conf.Policies.vrfKey[:], vrfKey)

	// load the auditor key if an auditor is configured
	if conf.Policies.AuditorPubkeyPath != "" {
		auditorKey, err := application.LoadSigningPubKey(
			conf.Policies.AuditorPubkeyPath, file)
		if err != nil {
			return err
		}
		conf.Policies.auditorKey = auditorKey
	}

	conf.DBPath = utils.ResolvePath(conf.DBPath, file)
	// also update path for TLS cert files
	for _, addr := range conf.Addresses {
		addr.TLSCertPath = utils.ResolvePath(addr.TLSCertPath, file)
		addr.TLSKeyPath = utils.ResolvePath(addr.TLSKeyPath, file)
	}
	// logger config
	if conf.Logger != nil && conf.Logger.Path != "" {
		conf.Logger.Path = utils.ResolvePath(conf.Logger.Path, file)
	}

	return nil
}

// Save writes a server's configuration.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// GetPath returns the server's configuration file path.
func (conf *Config) GetPath() string {
	return conf.Path
}
