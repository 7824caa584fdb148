package application

import (
	"fmt"
	"os"

	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
)

// AppConfig provides an abstraction of the
// underlying encoding format for the configs.
type AppConfig interface {
	Load(file, encoding string) error
	Save() error
	GetPath() string
}

// CommonConfig is the generic type used to specify the configuration of
// any kind of keytrace application-level executable (e.g. key directory
// server, auditor, client etc.). It contains some common configuration
// values including the file path, logger configuration, and config
// loader.
type CommonConfig struct {
	Path     string
	Logger   *LoggerConfig `toml:"logger"`
	Encoding string
	loader   ConfigLoader
}

// NewCommonConfig initializes an application's config file path,
// its loader for the given encoding, and the logger configuration.
// Note: This constructor must be called in each Load() method
// implementation of an AppConfig.
func NewCommonConfig(file, encoding string, logger *LoggerConfig) *CommonConfig {
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
// specified in the given config file.
// If there is any parsing error or the key is malformed,
// LoadSigningPubKey() returns an error with a nil key.
func LoadSigningPubKey(path, file string) (sign.PublicKey, error) {
	signPath := utils.ResolvePath(path, file)
	signPubKey, err := os.ReadFile(signPath)
	if err != nil {
		return nil, fmt.Errorf("Cannot read signing key: %v", err)
	}
	if len(signPubKey) != sign.PublicKeySize {
		return nil, fmt.Errorf("Signing public-key must be 32 bytes (got %d)", len(signPubKey))
	}
	return signPubKey, nil
}

// LoadVRFPubKey loads a public VRF key at the given path
// specified in the given config file.
// If there is any parsing error or the key is malformed,
// LoadVRFPubKey() returns an error with a zero key.
func LoadVRFPubKey(path, file string) (vrf.PublicKey, error) {
	var pk vrf.PublicKey
	vrfPath := utils.ResolvePath(path, file)
	vrfPubKey, err := os.ReadFile(vrfPath)
	if err != nil {
		return pk, fmt.Errorf("Cannot read VRF key: %v", err)
	}
	if len(vrfPubKey) != vrf.PublicKeySize {
		return pk, fmt.Errorf("VRF public-key must be 32 bytes (got %d)", len(vrfPubKey))
	}
	copy(pk[:], vrfPubKey)
	return pk, nil
}
