package serve

import (
	cmdUtil "github.com/ValentinKolb/dctl/cmd/util"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/ValentinKolb/dctl/rpc/server"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dCTL node",
		Long:    `Start a dCTL node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DCTL_<flag> (e.g. DCTL_PNN=1 or DCTL_NODES=10.0.0.1:4379,10.0.0.2:4379)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "pnn"
	ServeCmd.PersistentFlags().Uint32(key, 0, cmdUtil.WrapString("The physical node number of this node, its index in --nodes"))

	key = "nodes"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:4379", cmdUtil.WrapString("Comma-separated list of the addresses of all cluster nodes. The position of an address is the pnn of the node"))

	key = "public-ips"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of public addresses served by the cluster. Format: ADDRESS/MASK@IFACE (e.g. 192.168.1.10/24@eth0)"))

	key = "databases"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of databases attached at startup. Format: NAME[:FLAG[+FLAG]] where FLAG is one of: persistent, readonly, sticky, replicated"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "/var/run/dctl/dctl.sock", cmdUtil.WrapString("The address on which the control server will listen (e.g. 0.0.0.0:4379, /tmp/dctl.sock, ...)"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxMessageSize, cmdUtil.WrapString("The largest packet accepted by the transport (in bytes)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, common.DefaultWorkersPerConn, cmdUtil.WrapString("Number of requests processed concurrently per connection"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB, ignored for http)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer (in KB, ignored for http)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading and writing a packet"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics endpoint (e.g. localhost:9100), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.PNN = viper.GetUint32("pnn")
	serveCmdConfig.Nodes = cmdUtil.SplitList(viper.GetString("nodes"))
	serveCmdConfig.PublicIPs = cmdUtil.SplitList(viper.GetString("public-ips"))
	serveCmdConfig.Databases = cmdUtil.SplitList(viper.GetString("databases"))
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		MaxMessageSize: viper.GetInt("max-message-size"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay: viper.GetBool("tcp-nodelay"),
		},
	}

	if err := serveCmdConfig.Validate(); err != nil {
		return err
	}

	// parse the cluster settings early so flag errors are reported before the transport starts
	if _, err := server.NodeConfigOf(*serveCmdConfig); err != nil {
		return errors.Wrap(err, "invalid cluster configuration")
	}
	return nil
}

// run starts the dCTL node
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		serializer.NewBinarySerializer(),
	)

	return serv.Serve()
}
