package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/ValentinKolb/ftsd/cmd/util"
	"github.com/ValentinKolb/ftsd/lib/index"
	"github.com/ValentinKolb/ftsd/lib/listener"
	"github.com/ValentinKolb/ftsd/lib/shutdown"
	"github.com/ValentinKolb/ftsd/rpc/common"
	"github.com/ValentinKolb/ftsd/rpc/server"
)

// Version of the daemon, also printed by the root version command
const Version = "1.0.0"

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the ftsd daemon",
		Long:    `Start the ftsd daemon with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is FTSD_<flag> (e.g. FTSD_READ_TIMEOUT=10)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "listen"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of listen directives. Format: [address:]port[-portend][:protocol] or /path/to/socket[:protocol] where protocol is one of: sphinx, mysql41, http, replication, each with an optional _vip suffix. Defaults to 9312 (sphinx) and 9306:mysql41"))

	key = "read-timeout"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Network read timeout in seconds for request packets"))

	key = "write-timeout"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Network write timeout in seconds for reply packets"))

	key = "client-timeout"
	ServeCmd.PersistentFlags().Int(key, 300, cmdUtil.WrapString("Idle timeout in seconds for persistent client connections"))

	key = "max-packet-size"
	ServeCmd.PersistentFlags().Int(key, 8<<20, cmdUtil.WrapString("Maximum accepted request packet size in bytes"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of simultaneously served connections, 0 for unlimited. VIP listeners are exempt"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory holding the served indexes"))

	key = "pid-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("File to write the daemon PID to; removed again on clean shutdown"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse listen directives
	var specs []string
	if raw := viper.GetString("listen"); raw != "" {
		specs = strings.Split(raw, ",")
		for i := range specs {
			specs[i] = strings.TrimSpace(specs[i])
		}
	}
	listeners, err := listener.ParseAll(specs)
	if err != nil {
		return err
	}
	serveCmdConfig.Listeners = listeners

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.ReadTimeout = time.Duration(viper.GetInt("read-timeout")) * time.Second
	serveCmdConfig.WriteTimeout = time.Duration(viper.GetInt("write-timeout")) * time.Second
	serveCmdConfig.ClientTimeout = time.Duration(viper.GetInt("client-timeout")) * time.Second
	serveCmdConfig.MaxPacketSize = viper.GetInt("max-packet-size")
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.PIDFile = viper.GetString("pid-file")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the ftsd daemon
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(*serveCmdConfig)

	fmt.Println(serveCmdConfig.String())

	// PID file lifecycle
	if serveCmdConfig.PIDFile != "" {
		pid := fmt.Sprintf("%d\n", os.Getpid())
		if err := os.WriteFile(serveCmdConfig.PIDFile, []byte(pid), 0o644); err != nil {
			return fmt.Errorf("failed to write pid file: %v", err)
		}
		shutdown.Register(func() { os.Remove(serveCmdConfig.PIDFile) })
	}

	// served-index registry; indexes register here as they are loaded
	registry := index.NewGuardedHash()
	shutdown.Register(registry.ReleaseAndClear)

	handler := server.NewSearchdAdapter(registry, Version)
	srv := server.New(*serveCmdConfig, handler)

	// a signal triggers the orderly shutdown chain, which stops the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("received %s, shutting down\n", sig)
		shutdown.Request()
		shutdown.Fire()
	}()

	return srv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ftsd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
