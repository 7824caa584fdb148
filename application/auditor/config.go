package auditor

import (
	"fmt"
	"os"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
)

// Config contains the auditor's configuration needed to audit a
// keytrace directory: the paths to the directory's signing and VRF
// public-key files and the actual keys parsed from those files; the
// path to the auditor's own signing key; the directory's address for
// receiving audit requests; and the audit schedule.
type Config struct {
	*application.CommonConfig

	SignPubkeyPath string `toml:"sign_pubkey_path"`
	VRFPubkeyPath  string `toml:"vrf_pubkey_path"`
	SignKeyPath    string `toml:"sign_key_path"`

	SigningPubKey sign.PublicKey
	VRFPubKey     vrf.PublicKey

	Address string `toml:"address"`
	// PollInterval is the number of seconds between audit rounds.
	PollInterval uint64 `toml:"poll_interval"`
	// PageSize is the maximum number of log entries fetched per
	// audit request.
	PageSize uint64 `toml:"page_size"`

	signKey sign.PrivateKey
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new auditor configuration at the given file
// path, with the given config encoding, directory public-key paths,
// auditor signing key path, directory address, and audit schedule.
func NewConfig(file, encoding string, signPubkeyPath, vrfPubkeyPath,
	signKeyPath, serverAddr string, pollInterval,
	pageSize uint64) *Config {
	var conf = Config{
		CommonConfig:   application.NewCommonConfig(file, encoding, nil),
		SignPubkeyPath: signPubkeyPath,
		VRFPubkeyPath:  vrfPubkeyPath,
		SignKeyPath:    signKeyPath,
		Address:        serverAddr,
		PollInterval:   pollInterval,
		PageSize:       pageSize,
	}

	return &conf
}

// Load initializes an auditor's configuration from the given file
// using the given encoding. It reads the directory's public-key files
// and the auditor's signing key file, and parses the actual keys.
func (conf *Config) Load(file, encoding string) error {
	conf.CommonConfig = application.NewCommonConfig(file, encoding, nil)
	if err := conf.GetLoader().Decode(conf); err != nil {
		return err
	}

	// load the directory's public keys
	signPubKey, err := application.LoadSigningPubKey(conf.SignPubkeyPath, file)
	if err != nil {
		return err
	}
	conf.SigningPubKey = signPubKey

	vrfPubKey, err := application.LoadVRFPubKey(conf.VRFPubkeyPath, file)
	if err != nil {
		return err
	}
	conf.VRFPubKey = vrfPubKey

	// load the auditor's own signing key
	signPath := utils.ResolvePath(conf.SignKeyPath, file)
	signKey, err := os.ReadFile(signPath)
	if err != nil {
		return fmt.Errorf("Cannot read signing key: %v", err)
	}
	if len(signKey) != sign.PrivateKeySize {
		return fmt.Errorf("Signing key must be 64 bytes (got %d)", len(signKey))
	}
	conf.signKey = signKey

	if conf.Logger != nil && conf.Logger.Path != "" {
		conf.Logger.Path = utils.ResolvePath(conf.Logger.Path, file)
	}

	return nil
}

// Save writes an auditor's configuration.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// GetPath returns the auditor's configuration file path.
func (conf *Config) GetPath() string {
	return conf.Path
}
