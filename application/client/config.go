package client

import (
	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
)

// Config contains the client's configuration needed to send a request
// to a keytrace server: the paths to the directory's public-key files
// and the actual public keys parsed from those files; the path the
// client saves its verified consistency state under; the server's
// addresses for sending append requests and other types of requests,
// respectively.
//
// Note that if AppendAddress is empty, the client falls back to using
// Address for all request types.
type Config struct {
	*application.CommonConfig

	SignPubkeyPath    string `toml:"sign_pubkey_path"`
	VRFPubkeyPath     string `toml:"vrf_pubkey_path"`
	AuditorPubkeyPath string `toml:"auditor_pubkey_path,omitempty"`
	StatePath         string `toml:"state_path"`

	SigningPubKey sign.PublicKey
	VRFPubKey     vrf.PublicKey
	AuditorPubKey sign.PublicKey

	AppendAddress string `toml:"append_address,omitempty"`
	Address       string `toml:"address"`
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new client configuration at the given file
// path, with the given config encoding, directory public-key paths,
// state file path, append address, and server address. The auditor
// public-key path is left empty when the deployment has no auditor.
func NewConfig(file, encoding string, signPubkeyPath, vrfPubkeyPath,
	auditorPubkeyPath, statePath, appendAddr, serverAddr string) *Config {
	var conf = Config{
		CommonConfig:      application.NewCommonConfig(file, encoding, nil),
		SignPubkeyPath:    signPubkeyPath,
		VRFPubkeyPath:     vrfPubkeyPath,
		AuditorPubkeyPath: auditorPubkeyPath,
		StatePath:         statePath,
		AppendAddress:     appendAddr,
		Address:           serverAddr,
	}

	return &conf
}

// Load initializes a client's configuration from the given file
// using the given encoding.
// It reads the directory's public-key files and parses the actual
// keys.
func (conf *Config) Load(file, encoding string) error {
	conf.CommonConfig = application.NewCommonConfig(file, encoding, nil)
	if err := conf.GetLoader().Decode(conf); err != nil {
		return err
	}

	// load the directory's keys
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

	if conf.AuditorPubkeyPath != "" {
		auditorPubKey, err := application.LoadSigningPubKey(
			conf.AuditorPubkeyPath, file)
		if err != nil {
			return err
		}
		conf.AuditorPubKey = auditorPubKey
	}

	conf.StatePath = utils.ResolvePath(conf.StatePath, file)

	return nil
}

// Save writes a client's configuration.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// GetPath returns the client's configuration file path.
func (conf *Config) GetPath() string {
	return conf.Path
}
