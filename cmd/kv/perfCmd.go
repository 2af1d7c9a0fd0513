package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mediamanager/mstore/cmd/util"
	"github.com/mediamanager/mstore/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measures the throughput of the selected store (local, remote or cache)",
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return openStore()
}

// perfCase is one benchmark: prepare fills the keys, op runs one operation
type perfCase struct {
	name    string
	prepare bool
	op      func(ctx context.Context, key string) error
}

func perfCases() []perfCase {
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)

	return []perfCase{
		{name: "set", op: func(ctx context.Context, key string) error {
			return kvStore.Set(ctx, key, "test")
		}},
		{name: "set-large", op: func(ctx context.Context, key string) error {
			return kvStore.Set(ctx, key, largeValue)
		}},
		{name: "get", prepare: true, op: func(ctx context.Context, key string) error {
			_, _, err := kvStore.Get(ctx, key)
			return err
		}},
		{name: "has", prepare: true, op: func(ctx context.Context, key string) error {
			_, err := kvStore.Has(ctx, key)
			return err
		}},
		{name: "has-not", op: func(ctx context.Context, key string) error {
			_, err := kvStore.Has(ctx, key+"-missing")
			return err
		}},
		{name: "delete", prepare: true, op: func(ctx context.Context, key string) error {
			return kvStore.Remove(ctx, key)
		}},
	}
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Performance test of the selected store")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintln(w, util.GetClientConfig().String())
	fmt.Fprintf(w, "Threads: %d\n\n", perfNumThreads)

	results := make(map[string]testing.BenchmarkResult)
	for _, pc := range perfCases() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result := benchmark(ctx, pc)
		results[pc.name] = result
		printResult(w, pc.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Fprintf(w, "\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Fprintln(w, "Export complete")
	}

	return nil
}

func benchmark(ctx context.Context, pc perfCase) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(pc.name) {
			return
		}

		getKey, iter := getKeys(pc.name)

		if pc.prepare {
			iter(func(k string) {
				if err := kvStore.Set(ctx, k, "test"); err != nil {
					util.Logger.Warningf("(%s) - error setting key: %v", pc.name, err)
				}
			})
		}

		b.Cleanup(func() {
			iter(func(k string) {
				if err := kvStore.Remove(ctx, k); err != nil {
					util.Logger.Warningf("(%s) - error deleting key: %v", pc.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if err := pc.op(ctx, getKey(counter)); err != nil {
					util.Logger.Warningf("(%s) - error: %v", pc.name, err)
				}
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s/%s-%d", perfKeyPrefix, prefix, i)
	}

	// index with wraparound
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(w io.Writer, test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Fprintf(w, "%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Fprintf(w, "%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Origin", "TimeoutSec", "Engine", "Remote", "Cache",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Origin,
			strconv.Itoa(config.TimeoutSecond),
			config.Engine,
			strconv.FormatBool(viper.GetBool("remote")),
			strconv.FormatBool(viper.GetBool("cache")),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
