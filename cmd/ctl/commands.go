package ctl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/dctl/cmd/util"
	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// --------------------------------------------------------------------------
// Node
// --------------------------------------------------------------------------

var (
	pnnCmd = &cobra.Command{
		Use:   "pnn",
		Short: "Prints the physical node number of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pnn, err := rpcClient.PNN()
			if err != nil {
				return err
			}
			return util.Print(map[string]uint32{"pnn": pnn}, func() {
				fmt.Println(pnn)
			})
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the node answers and prints the round trip time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			clients, err := rpcClient.Ping()
			if err != nil {
				return err
			}
			rtt := time.Since(start)
			return util.Print(map[string]any{"clients": clients, "rtt_us": rtt.Microseconds()}, func() {
				fmt.Printf("response from node: time=%s clients=%d\n", rtt, clients)
			})
		},
	}
	processExistsCmd = &cobra.Command{
		Use:   "process-exists [pid]",
		Short: "Checks whether pid is the process of the node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parseUint32("pid", args[0])
			if err != nil {
				return err
			}
			exists, err := rpcClient.ProcessExists(pid)
			if err != nil {
				return err
			}
			return util.Print(map[string]bool{"exists": exists}, func() {
				if exists {
					fmt.Printf("PID %d exists\n", pid)
				} else {
					fmt.Printf("PID %d does not exist\n", pid)
				}
			})
		},
	}
	statusCmd = &cobra.Command{
		Use:     "status",
		Aliases: []string{"nodemap"},
		Short:   "Prints all nodes of the cluster with their flags",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			nodeMap, err := rpcClient.NodeMap(a)
			if err != nil {
				return err
			}
			return util.Print(nodeMap, func() {
				fmt.Printf("Number of nodes:%d\n", len(nodeMap.Nodes))
				for _, n := range nodeMap.Nodes {
					fmt.Printf("pnn:%d %-16s %s\n", n.PNN, addrString(n.Addr), protocol.NodeFlagsString(n.Flags))
				}
			})
		},
	}
	vnnMapCmd = &cobra.Command{
		Use:   "vnnmap",
		Short: "Prints the generation and the active nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			vnnMap, err := rpcClient.VNNMap(a)
			if err != nil {
				return err
			}
			return util.Print(vnnMap, func() {
				fmt.Printf("Generation:%d\n", vnnMap.Generation)
				fmt.Printf("Size:%d\n", len(vnnMap.Map))
				for i, pnn := range vnnMap.Map {
					fmt.Printf("hash:%d lmaster:%d\n", i, pnn)
				}
			})
		},
	}
	uptimeCmd = &cobra.Command{
		Use:   "uptime",
		Short: "Prints start and recovery times of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uptime, err := rpcClient.Uptime()
			if err != nil {
				return err
			}
			return util.Print(uptime, func() {
				now := uptime.CurrentTime.Time()
				fmt.Printf("Current time of node          : %s\n", now.Format(time.RFC1123))
				fmt.Printf("Node started at               : %s (%s)\n",
					uptime.CtdbdStartTime.Time().Format(time.RFC1123), now.Sub(uptime.CtdbdStartTime.Time()).Round(time.Second))
				if !uptime.LastRecoveryFinished.IsZero() {
					fmt.Printf("Time of last recovery/failover: %s (%s)\n",
						uptime.LastRecoveryFinished.Time().Format(time.RFC1123), now.Sub(uptime.LastRecoveryFinished.Time()).Round(time.Second))
					fmt.Printf("Duration of last recovery     : %s\n",
						uptime.LastRecoveryFinished.Time().Sub(uptime.LastRecoveryStarted.Time()))
				}
			})
		},
	}
	statisticsCmd = &cobra.Command{
		Use:   "statistics",
		Short: "Prints the statistics of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			stats, err := rpcClient.Statistics(a)
			if err != nil {
				return err
			}
			return util.Print(stats, func() {
				fmt.Printf("%-28s%d\n", "num_clients", stats.NumClients)
				fmt.Printf("%-28s%d\n", "frozen", stats.Frozen)
				fmt.Printf("%-28s%d\n", "recovering", stats.Recovering)
				fmt.Printf("%-28s%d\n", "num_recoveries", stats.NumRecoveries)
				fmt.Printf("%-28s%d\n", "client_packets_sent", stats.ClientPacketsSent)
				fmt.Printf("%-28s%d\n", "client_packets_recv", stats.ClientPacketsRecv)
				fmt.Printf("%-28s%d\n", "client.req_control", stats.Client.ReqControl)
				fmt.Printf("%-28s%d\n", "client.req_message", stats.Client.ReqMessage)
				fmt.Printf("%-28s%d\n", "timeouts.control", stats.Timeouts.Control)
				fmt.Printf("%-28s%d\n", "timeouts.traverse", stats.Timeouts.Traverse)
				fmt.Printf("%-28s%d\n", "locks.num_calls", stats.Locks.NumCalls)
				fmt.Printf("%-28s%d\n", "locks.num_failed", stats.Locks.NumFailed)
				fmt.Printf("%-28s%d\n", "total_calls", stats.TotalCalls)
				fmt.Printf("%-28s%d\n", "pending_calls", stats.PendingCalls)
				fmt.Printf("%-28s%d\n", "memory_used", stats.MemoryUsed)
				fmt.Printf("%-28s%d\n", "max_hop_count", stats.MaxHopCount)
				fmt.Printf("%-28s%s\n", "hop_count_buckets", bucketsString(stats.HopCountBucket[:]))
				fmt.Printf("%-28s%s\n", "call_latency", latencyString(stats.CallLatency))
				fmt.Printf("%-28s%s\n", "lock_latency", latencyString(stats.Locks.Latency))
			})
		},
	}
)

// --------------------------------------------------------------------------
// Databases
// --------------------------------------------------------------------------

// recordView is the printable form of a record
type recordView struct {
	Key     string `json:"key"`
	RSN     uint64 `json:"rsn"`
	DMaster uint32 `json:"dmaster"`
	Flags   uint32 `json:"flags"`
	Data    string `json:"data"`
}

var (
	dbMapCmd = &cobra.Command{
		Use:   "dbmap",
		Short: "Lists the attached databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			dbMap, err := rpcClient.DBMap(a)
			if err != nil {
				return err
			}
			return util.Print(dbMap, func() {
				fmt.Printf("Number of databases:%d\n", len(dbMap.DBs))
				for _, db := range dbMap.DBs {
					fmt.Printf("dbid:0x%08x %s\n", db.DBID, dbFlagsString(db.Flags))
				}
			})
		},
	}
	dbStatisticsCmd = &cobra.Command{
		Use:   "dbstatistics [db]",
		Short: "Prints the statistics of a database (name or id)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			stats, err := rpcClient.DBStatistics(parseDBID(args[0]), a)
			if err != nil {
				return err
			}
			return util.Print(stats, func() {
				fmt.Printf("DB Statistics %s\n", args[0])
				fmt.Printf(" %-26s%d\n", "locks.num_calls", stats.Locks.NumCalls)
				fmt.Printf(" %-26s%d\n", "locks.num_current", stats.Locks.NumCurrent)
				fmt.Printf(" %-26s%d\n", "locks.num_pending", stats.Locks.NumPending)
				fmt.Printf(" %-26s%d\n", "locks.num_failed", stats.Locks.NumFailed)
				fmt.Printf(" %-26s%s\n", "locks.latency", latencyString(stats.Locks.Latency))
				fmt.Printf(" %-26s%s\n", "locks.buckets", bucketsString(stats.Locks.Buckets[:]))
				fmt.Printf(" %-26s%s\n", "hop_count_buckets", bucketsString(stats.HopCountBucket[:]))
				fmt.Printf(" Num Hot Keys: %d\n", len(stats.HotKeys))
				for i, k := range stats.HotKeys {
					fmt.Printf("     Count:%d Key:%q\n", k.Count, k.Key)
					if i >= 9 {
						break
					}
				}
			})
		},
	}
	pullDBCmd = &cobra.Command{
		Use:   "pulldb [db]",
		Short: "Prints the records of a database, optionally only those of one location master",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lmaster := protocol.LMasterAny
			if s := viper.GetString("lmaster"); s != "" && s != "any" {
				var err error
				if lmaster, err = parseUint32("lmaster", s); err != nil {
					return err
				}
			}

			a := arena.New(0)
			defer a.Release()

			buf, err := rpcClient.PullDB(parseDBID(args[0]), lmaster, a)
			if err != nil {
				return err
			}
			return printRecords(buf)
		},
	}
	catDBCmd = &cobra.Command{
		Use:   "catdb [db]",
		Short: "Prints all records of a database that carry data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			buf, err := rpcClient.Traverse(parseDBID(args[0]), a)
			if err != nil {
				return err
			}
			return printRecords(buf)
		},
	}
	pushDBCmd = &cobra.Command{
		Use:   "pushdb [db] [key=value...]",
		Short: "Writes records into a database",
		Long:  "Writes records into a database. A record is only applied if --rsn is higher than the rsn stored for the key. An empty value deletes the data of a record.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dmaster, err := targetPNN()
			if err != nil {
				return err
			}
			header := protocol.LTDBHeader{RSN: viper.GetUint64("rsn"), DMaster: dmaster}

			buf := &protocol.RecBuffer{DBID: parseDBID(args[0])}
			for _, kv := range args[1:] {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || key == "" {
					return errors.Newf("invalid record %q (expected key=value)", kv)
				}
				buf.Records = append(buf.Records, protocol.Record{
					Key:   []byte(key),
					Value: protocol.JoinLTDBRecord(&header, []byte(value)),
				})
			}

			if err := rpcClient.PushDB(buf); err != nil {
				return err
			}
			fmt.Printf("pushed %d records\n", len(buf.Records))
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Tunables
// --------------------------------------------------------------------------

var (
	tunableCommands = &cobra.Command{
		Use:   "tunables",
		Short: "Reads and changes the tunables of the node",
	}
	listTunablesCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the names of all tunables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			vars, err := rpcClient.ListTunables(a)
			if err != nil {
				return err
			}
			return util.Print(vars.Vars, func() {
				fmt.Println(strings.Join(vars.Vars, "\n"))
			})
		},
	}
	getTunableCmd = &cobra.Command{
		Use:   "get [name]",
		Short: "Prints the value of a tunable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			tunable, err := rpcClient.GetTunable(args[0], a)
			if err != nil {
				return err
			}
			return util.Print(tunable, func() {
				fmt.Printf("%-26s = %d\n", tunable.Name, tunable.Value)
			})
		},
	}
	setTunableCmd = &cobra.Command{
		Use:   "set [name] [value]",
		Short: "Changes the value of a tunable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseUint32("value", args[1])
			if err != nil {
				return err
			}
			if err := rpcClient.SetTunable(args[0], value); err != nil {
				return err
			}
			fmt.Printf("%s set to %d\n", args[0], value)
			return nil
		},
	}
	allTunablesCmd = &cobra.Command{
		Use:   "all",
		Short: "Prints all tunables with their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := rpcClient.AllTunables()
			if err != nil {
				return err
			}
			return util.Print(all, func() {
				for _, tunable := range all.Tunables() {
					fmt.Printf("%-26s = %d\n", tunable.Name, tunable.Value)
				}
			})
		},
	}
)

// --------------------------------------------------------------------------
// Addresses and Bans
// --------------------------------------------------------------------------

var (
	ipCmd = &cobra.Command{
		Use:   "ip",
		Short: "Lists the public addresses and the nodes holding them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			ips, err := rpcClient.PublicIPs(a)
			if err != nil {
				return err
			}
			return util.Print(ips, func() {
				fmt.Println("Public IPs on node")
				for _, ip := range ips.IPs {
					if ip.PNN == node.UnknownPNN {
						fmt.Printf("%s -1\n", addrString(ip.Addr))
						continue
					}
					fmt.Printf("%s %d\n", addrString(ip.Addr), ip.PNN)
				}
			})
		},
	}
	ifacesCmd = &cobra.Command{
		Use:   "ifaces",
		Short: "Lists the interfaces of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := arena.New(0)
			defer a.Release()

			ifaces, err := rpcClient.Ifaces(a)
			if err != nil {
				return err
			}
			return util.Print(ifaces, func() {
				fmt.Println("Interfaces on node")
				for _, iface := range ifaces.Ifaces {
					link := "down"
					if iface.LinkState != 0 {
						link = "up"
					}
					fmt.Printf("name:%s link:%s references:%d\n", iface.Name, link, iface.References)
				}
			})
		},
	}
	banCmd = &cobra.Command{
		Use:   "ban [seconds]",
		Short: "Bans the node for the given number of seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := parseUint32("seconds", args[0])
			if err != nil {
				return err
			}
			if seconds == 0 {
				return errors.New("a ban needs a duration, use unban to lift it")
			}
			pnn, err := targetPNN()
			if err != nil {
				return err
			}
			if err := rpcClient.SetBanState(pnn, seconds); err != nil {
				return err
			}
			fmt.Printf("node %d banned for %d seconds\n", pnn, seconds)
			return nil
		},
	}
	unbanCmd = &cobra.Command{
		Use:   "unban",
		Short: "Lifts the ban of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pnn, err := targetPNN()
			if err != nil {
				return err
			}
			if err := rpcClient.SetBanState(pnn, 0); err != nil {
				return err
			}
			fmt.Printf("node %d unbanned\n", pnn)
			return nil
		},
	}
	banStateCmd = &cobra.Command{
		Use:   "banstate",
		Short: "Prints the ban of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ban, err := rpcClient.BanState()
			if err != nil {
				return err
			}
			return util.Print(ban, func() {
				if ban.Time == 0 {
					fmt.Printf("node %d is not banned\n", ban.PNN)
					return
				}
				fmt.Printf("node %d is banned for %d seconds\n", ban.PNN, ban.Time)
			})
		},
	}
)

func init() {
	tunableCommands.AddCommand(listTunablesCmd)
	tunableCommands.AddCommand(getTunableCmd)
	tunableCommands.AddCommand(setTunableCmd)
	tunableCommands.AddCommand(allTunablesCmd)

	pullDBCmd.Flags().String("lmaster", "any", util.WrapString("Only pull records whose location master is this pnn"))
	pushDBCmd.Flags().Uint64("rsn", 1, util.WrapString("The record sequence number written with the records"))
}

// --------------------------------------------------------------------------
// Output Helper
// --------------------------------------------------------------------------

// printRecords prints the records of a record buffer
func printRecords(buf *protocol.RecBuffer) error {
	views := make([]recordView, 0, len(buf.Records))
	for _, rec := range buf.Records {
		h, data, err := protocol.SplitLTDBRecord(rec.Value)
		if err != nil {
			return errors.Wrapf(err, "record %q", rec.Key)
		}
		views = append(views, recordView{
			Key:     string(rec.Key),
			RSN:     h.RSN,
			DMaster: h.DMaster,
			Flags:   h.Flags,
			Data:    string(data),
		})
	}

	return util.Print(views, func() {
		for _, v := range views {
			fmt.Printf("key(%d) = %q\n", len(v.Key), v.Key)
			fmt.Printf("dmaster: %d\n", v.DMaster)
			fmt.Printf("rsn: %d\n", v.RSN)
			fmt.Printf("flags: 0x%08x\n", v.Flags)
			fmt.Printf("data(%d) = %q\n\n", len(v.Data), v.Data)
		}
		fmt.Fprintf(os.Stderr, "Dumped %d records\n", len(views))
	})
}

// addrString renders an address, "-" for none
func addrString(addr protocol.SockAddr) string {
	if addr == nil {
		return "-"
	}
	return addr.String()
}

// latencyString renders a latency counter in seconds
func latencyString(l protocol.LatencyCounter) string {
	if l.Num == 0 {
		return "0 calls"
	}
	return fmt.Sprintf("%d calls min %.6f avg %.6f max %.6f", l.Num, l.Min, l.Total/float64(l.Num), l.Max)
}

// bucketsString renders histogram buckets separated by spaces
func bucketsString(buckets []uint32) string {
	parts := make([]string, len(buckets))
	for i, b := range buckets {
		parts[i] = fmt.Sprint(b)
	}
	return strings.Join(parts, " ")
}
