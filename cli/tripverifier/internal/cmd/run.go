package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"strconv"
	"time"

	"github.com/GNS-Foundation/trip-protocol/application"
	"github.com/GNS-Foundation/trip-protocol/cli"
	"github.com/GNS-Foundation/trip-protocol/storage/kv/leveldbkv"
	"github.com/GNS-Foundation/trip-protocol/verifier"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = cli.NewRunCommand("TRIP Verifier", run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "config.toml", "Path to Verifier configuration file")
	runCmd.Flags().BoolP("pid", "p", false, "Write down the process id to tripverifier.pid in the current working directory")
}

func run(cmd *cobra.Command, args []string) {
	confPath := cmd.Flag("config").Value.String()
	pid, _ := strconv.ParseBool(cmd.Flag("pid").Value.String())
	if pid {
		writePID()
	}

	conf := &Config{}
	if err := conf.Load(confPath, "toml"); err != nil {
		log.Fatal(err)
	}

	db, err := leveldbkv.OpenDB(conf.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	sb := application.NewServerBase(conf.CommonConfig, "tripverifier listening", conf.acceptableRequests())
	svc, err := verifier.NewService(db, sb.Logger())
	if err != nil {
		log.Fatal(err)
	}

	for _, addr := range conf.Addresses {
		sb.ListenAndHandle(addr.ServerAddress, svc.HandleRequest)
	}

	interval := time.Duration(conf.EpochIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	sb.RunInBackground(func() {
		sb.EpochUpdate(application.NewEpochTimer(interval), svc.SweepMaintenance)
	})

	// run the server until receiving an interrupt signal
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
	sb.Shutdown()
}

func writePID() {
	pidf, err := os.OpenFile(path.Join(".", "tripverifier.pid"), os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Printf("Cannot create tripverifier.pid: %v", err)
		return
	}
	if _, err := fmt.Fprint(pidf, os.Getpid()); err != nil {
		log.Printf("Cannot write to pid file: %v", err)
	}
}
