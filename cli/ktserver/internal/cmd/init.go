package cmd

import (
	"log"
	"path"
	"strconv"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/application/server"
	"github.com/keytrace/keytrace-go/application/testutil"
	"github.com/keytrace/keytrace-go/cli"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = cli.NewInitCommand("keytrace key server", initRunFunc)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".", "Location of directory for storing generated files")
	initCmd.Flags().BoolP("cert", "c", false, "Generate self-signed ssl keys/cert with sane defaults")
}

func initRunFunc(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	mkConfig(dir)
	mkSigningKey(dir)
	mkVrfKey(dir)

	cert, err := strconv.ParseBool(cmd.Flag("cert").Value.String())
	if err == nil && cert {
		testutil.CreateTLSCert(dir)
	}
}

func mkConfig(dir string) {
	file := path.Join(dir, "config.toml")
	addrs := []*server.Address{
		{
			ServerAddress: &application.ServerAddress{
				Address: "unix:///tmp/keytrace.sock",
			},
			AllowAppend: true,
		},
		{
			ServerAddress: &application.ServerAddress{
				Address:     "tcp://0.0.0.0:3000",
				TLSCertPath: "server.pem",
				TLSKeyPath:  "server.key",
			},
		},
	}
	logger := &application.LoggerConfig{
		EnableStacktrace: true,
		Environment:      "development",
		Path:             "ktserver.log",
	}

	policies := server.NewPolicies(60, "vrf.priv", "sign.priv", "",
		vrf.PrivateKey{}, nil, nil)

	conf := server.NewConfig(file, "toml", addrs, logger, "ktserver.db", policies)
	if err := conf.Save(); err != nil {
		log.Println(err)
	}
}

func mkSigningKey(dir string) {
	sk, err := sign.GenerateKey(nil)
	if err != nil {
		log.Print(err)
		return
	}
	pk, _ := sk.Public()
	if err := utils.WriteFile(path.Join(dir, "sign.priv"), sk, 0600); err != nil {
		log.Println(err)
		return
	}
	if err := utils.WriteFile(path.Join(dir, "sign.pub"), pk, 0600); err != nil {
		log.Println(err)
		return
	}
}

func mkVrfKey(dir string) {
	sk, err := vrf.GenerateKey(nil)
	if err != nil {
		log.Print(err)
		return
	}
	pk, _ := sk.Public()
	if err := utils.WriteFile(path.Join(dir, "vrf.priv"), sk[:], 0600); err != nil {
		log.Println(err)
		return
	}
	if err := utils.WriteFile(path.Join(dir, "vrf.pub"), pk[:], 0600); err != nil {
		log.Println(err)
		return
	}
}
