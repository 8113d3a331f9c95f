package ctl

import (
	"strconv"
	"strings"

	"github.com/ValentinKolb/dctl/cmd/util"
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/client"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	rpcClient client.IControlClient

	// ControlCommands represents the control command group
	ControlCommands = &cobra.Command{
		Use:                "ctl",
		Short:              "Send controls to a dCTL node",
		PersistentPreRunE:  setupControlClient,
		PersistentPostRunE: closeControlClient,
	}
)

func init() {
	// Add common RPC flags to the control command
	util.SetupRPCClientFlags(ControlCommands)

	// Add subcommands
	ControlCommands.AddCommand(pnnCmd)
	ControlCommands.AddCommand(pingCmd)
	ControlCommands.AddCommand(processExistsCmd)
	ControlCommands.AddCommand(statusCmd)
	ControlCommands.AddCommand(vnnMapCmd)
	ControlCommands.AddCommand(uptimeCmd)
	ControlCommands.AddCommand(statisticsCmd)
	ControlCommands.AddCommand(dbMapCmd)
	ControlCommands.AddCommand(dbStatisticsCmd)
	ControlCommands.AddCommand(pullDBCmd)
	ControlCommands.AddCommand(pushDBCmd)
	ControlCommands.AddCommand(catDBCmd)
	ControlCommands.AddCommand(tunableCommands)
	ControlCommands.AddCommand(ipCmd)
	ControlCommands.AddCommand(ifacesCmd)
	ControlCommands.AddCommand(banCmd)
	ControlCommands.AddCommand(unbanCmd)
	ControlCommands.AddCommand(banStateCmd)
	ControlCommands.AddCommand(perfTestCmd)
}

// setupControlClient initializes the control client
func setupControlClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// The client logs through the same loggers as the server
	if err := common.InitLoggers("error"); err != nil {
		return err
	}

	config := util.GetClientConfig()

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the control client
	rpcClient, err = client.NewControlClient(
		*config,
		t,
		serializer.NewBinarySerializer(),
	)

	return err
}

// closeControlClient closes the connection of the control client
func closeControlClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}

// --------------------------------------------------------------------------
// Argument Helper
// --------------------------------------------------------------------------

// parseDBID accepts a database name or a numeric id (e.g. 0x7a19d84d)
func parseDBID(s string) uint32 {
	if id, err := strconv.ParseUint(s, 0, 32); err == nil {
		return uint32(id)
	}
	return node.DatabaseID(s)
}

// parseUint32 parses a decimal or hexadecimal argument
func parseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be a number", name)
	}
	return uint32(v), nil
}

// targetPNN returns the pnn of the addressed node
func targetPNN() (uint32, error) {
	if dest := util.GetClientConfig().DestNode; dest != protocol.DestCurrent {
		return dest, nil
	}
	return rpcClient.PNN()
}

// dbFlagsString renders database flags as a comma-separated list
func dbFlagsString(flags uint8) string {
	var names []string
	for _, f := range []struct {
		flag uint8
		name string
	}{
		{protocol.DBFlagPersistent, "PERSISTENT"},
		{protocol.DBFlagReadonly, "READONLY"},
		{protocol.DBFlagSticky, "STICKY"},
		{protocol.DBFlagReplicated, "REPLICATED"},
	} {
		if flags&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}
