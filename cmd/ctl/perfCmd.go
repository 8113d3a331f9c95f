package ctl

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dctl/cmd/util"
	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dCTL nodes",
		Long:    "Sends controls from parallel goroutines and prints the time per control. The push and pull tests write records with the prefix __perf into --db.",
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix   = "__perf"
	perfValueSize   = 100
	perfNumThreads  = 10
	perfKeySpread   = 100
	perfDB          = ""
	perfSkip        = make([]string, 0)
	perfBenchmarks  = []string{"ping", "pnn", "statistics", "push", "pull"}
	perfPushCounter atomic.Uint64
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. ping,push)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the data of a pushed record should be (in bytes)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the push and pull tests"))
	key = "db"
	perfTestCmd.Flags().String(key, "", util.WrapString("Database for the push and pull tests (name or id), empty skips them"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfDB = viper.GetString("db")
	perfSkip = util.SplitList(viper.GetString("skip"))
	if perfDB == "" {
		perfSkip = append(perfSkip, "push", "pull")
	}

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dCTL nodes")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	dbID := parseDBID(perfDB)
	keys := perfKeys()
	value := make([]byte, perfValueSize)

	benchmarks := map[string]func(b *testing.B){
		"ping": parallel(func() error {
			_, err := rpcClient.Ping()
			return err
		}),
		"pnn": parallel(func() error {
			_, err := rpcClient.PNN()
			return err
		}),
		"statistics": parallel(func() error {
			_, err := rpcClient.Statistics(nil)
			return err
		}),
		"push": parallel(func() error {
			// every push needs a higher rsn to be applied
			rsn := perfPushCounter.Add(1)
			h := protocol.LTDBHeader{RSN: rsn}
			return rpcClient.PushDB(&protocol.RecBuffer{DBID: dbID, Records: []protocol.Record{
				{Key: keys[rsn%uint64(len(keys))], Value: protocol.JoinLTDBRecord(&h, value)},
			}})
		}),
		"pull": parallel(func() error {
			a := arena.New(0)
			defer a.Release()
			_, err := rpcClient.PullDB(dbID, protocol.LMasterAny, a)
			return err
		}),
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, name := range perfBenchmarks {
		if shouldSkip(name) {
			results[name] = testing.BenchmarkResult{}
			printResult(name, results[name])
			continue
		}
		results[name] = testing.Benchmark(benchmarks[name])
		printResult(name, results[name])
	}

	// Write results to CSV if path is provided
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parallel turns a control into a benchmark running on perfNumThreads goroutines per cpu
func parallel(control func() error) func(b *testing.B) {
	return func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := control(); err != nil {
					log.Printf("control failed: %v\n", err)
				}
			}
		})
	}
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// perfKeys creates the record keys of the push test
func perfKeys() [][]byte {
	keys := make([][]byte, perfKeySpread)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("%s-%d", perfKeyPrefix, i))
	}
	return keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := max(float64(result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return errors.Wrap(err, "failed to create CSV file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Transport", "Threads", "ValueSize", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for _, test := range perfBenchmarks {
		result := results[test]

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSize),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write row for test %s", test)
		}
	}

	return nil
}
