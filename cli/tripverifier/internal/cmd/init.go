package cmd

import (
	"log"
	"path"
	"strconv"

	"github.com/GNS-Foundation/trip-protocol/application"
	"github.com/GNS-Foundation/trip-protocol/application/testutil"
	"github.com/GNS-Foundation/trip-protocol/cli"
	applog "github.com/GNS-Foundation/trip-protocol/internal/log"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = cli.NewInitCommand("TRIP Verifier", initRunFunc)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".", "Location of directory for storing generated files")
	initCmd.Flags().BoolP("cert", "c", false, "Generate self-signed ssl keys/cert with sane defaults")
}

func initRunFunc(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	mkConfig(dir)

	cert, err := strconv.ParseBool(cmd.Flag("cert").Value.String())
	if err == nil && cert {
		testutil.CreateTLSCert(dir)
	}
}

func mkConfig(dir string) {
	file := path.Join(dir, "config.toml")
	addrs := []*Address{
		{
			ServerAddress: &application.ServerAddress{
				Address: "unix:///tmp/tripverifier.sock",
			},
			AllowSubmission: true,
		},
		{
			ServerAddress: &application.ServerAddress{
				Address:     "tcp://0.0.0.0:4443",
				TLSCertPath: "server.pem",
				TLSKeyPath:  "server.key",
			},
			AllowVerification: true,
		},
	}
	logger := &applog.LoggerConfig{
		EnableStacktrace: true,
		Environment:      "development",
		Path:             "tripverifier.log",
	}

	conf := NewConfig(addrs, logger, "tripverifier.db", 60)
	conf.CommonConfig.Path = file
	if err := conf.Save(); err != nil {
		log.Println(err)
	}
}
