package bench

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/dPrim/cmd/util"
	"github.com/ValentinKolb/dPrim/lib/cas"
	"github.com/ValentinKolb/dPrim/lib/common"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/ValentinKolb/dPrim/lib/replica"
	"github.com/ValentinKolb/dPrim/lib/replica/raftvalue"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent increments against an atomic long",
		Long: `Open an atomic long on the protocol selected for the given requirement and increment it
from several goroutines. Persistent requirements start a single node raft shard in the data directory.
Reports the final value, the attempts needed per update and the cas metrics in Prometheus text format.`,
		PreRunE: processBenchConfig,
		RunE:    run,
	}

	benchThreads = 10
	benchUpdates = 100
	benchKey     = "__bench"
	benchConf    *common.NodeConfig
)

func init() {
	util.SetupPrimitiveFlags(BenchCmd)
	util.SetupRaftFlags(BenchCmd)

	key := "threads"
	BenchCmd.Flags().Int(key, benchThreads, util.WrapString("Number of goroutines incrementing concurrently"))
	key = "updates"
	BenchCmd.Flags().Int(key, benchUpdates, util.WrapString("Number of increments per goroutine"))
	key = "key"
	BenchCmd.Flags().String(key, benchKey, util.WrapString("Register the counter is stored in"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	benchThreads = viper.GetInt("threads")
	benchUpdates = viper.GetInt("updates")
	benchKey = viper.GetString("key")
	if benchThreads < 1 || benchUpdates < 1 {
		return fmt.Errorf("threads and updates must be positive")
	}

	conf, err := util.GetNodeConfig(true)
	if err != nil {
		return err
	}
	benchConf = conf
	return common.InitLoggers(conf.LogLevel)
}

func run(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	desc, err := benchConf.Options(primitive.TypeAtomicLong).Protocol()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintln(out, benchConf.String())
	fmt.Fprintf(out, "Protocol: %s\n", desc)
	fmt.Fprintf(out, "Threads:  %d x %d updates\n\n", benchThreads, benchUpdates)

	ctx := context.Background()
	deps := replica.Deps{ShardID: benchConf.ShardID}
	if raft, ok := desc.(protocol.RaftDescriptor); ok {
		startCtx, cancel := context.WithTimeout(ctx, raft.MaxTimeout)
		nh, err := raftvalue.StartShard(startCtx, benchConf, raft)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to start raft shard: %w", err)
		}
		defer nh.Close()
		deps.NodeHost = nh
	}

	backend, err := replica.Open(desc, deps)
	if err != nil {
		return err
	}
	defer backend.Close()

	m := cas.NewMetrics("dprim_bench")
	res, err := Run(ctx, backend, benchKey, benchThreads, benchUpdates, m)
	if err != nil {
		return err
	}

	res.Print(out)
	fmt.Fprintln(out)
	m.WritePrometheus(out)
	return nil
}

// --------------------------------------------------------------------------
// Benchmark
// --------------------------------------------------------------------------

// Result summarizes one benchmark run.
type Result struct {
	Final    int64
	Expected int64
	Attempts gometrics.Histogram
	Latency  gometrics.Timer
	Elapsed  time.Duration
}

// Run resets key to 0 and increments it updates times from each of threads goroutines.
func Run(ctx context.Context, b replica.Backend, key string, threads, updates int, m *cas.Metrics) (*Result, error) {
	if err := replica.Long(b, key).Set(ctx, 0); err != nil {
		return nil, err
	}

	res := &Result{
		Expected: int64(threads * updates),
		Attempts: gometrics.NewHistogram(gometrics.NewUniformSample(4096)),
		Latency:  gometrics.NewTimer(),
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	start := time.Now()
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := &countingHandle{Handle: b.Value(key)}
			l := cas.NewLong(cas.NewTyped[int64](h, cas.Int64Codec{}), cas.WithMetrics(m))
			for j := 0; j < updates; j++ {
				h.calls = 0
				began := time.Now()
				if _, err := l.IncrementAndGet(ctx); err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				res.Latency.UpdateSince(began)
				res.Attempts.Update(int64(h.calls))
			}
		}()
	}
	wg.Wait()
	res.Elapsed = time.Since(start)

	if firstErr != nil {
		return nil, firstErr
	}

	final, err := replica.Long(b, key).Get(ctx)
	if err != nil {
		return nil, err
	}
	res.Final = final
	return res, nil
}

// Print writes a human readable summary.
func (r *Result) Print(w io.Writer) {
	ps := r.Attempts.Percentiles([]float64{0.5, 0.9, 0.99})
	fmt.Fprintf(w, "Final value:      %d (expected %d)\n", r.Final, r.Expected)
	fmt.Fprintf(w, "Elapsed:          %s (%.0f updates/s)\n", r.Elapsed.Round(time.Millisecond), float64(r.Expected)/r.Elapsed.Seconds())
	fmt.Fprintf(w, "Attempts/update:  mean %.2f  p50 %.0f  p90 %.0f  p99 %.0f  max %d\n", r.Attempts.Mean(), ps[0], ps[1], ps[2], r.Attempts.Max())
	fmt.Fprintf(w, "Latency:          mean %s  p99 %s\n",
		time.Duration(r.Latency.Mean()).Round(time.Microsecond),
		time.Duration(r.Latency.Percentile(0.99)).Round(time.Microsecond))
}

// countingHandle counts CompareAndSet calls. Each goroutine owns one.
type countingHandle struct {
	cas.Handle[[]byte]
	calls int
}

func (h *countingHandle) CompareAndSet(ctx context.Context, expected, updated []byte) (bool, error) {
	h.calls++
	return h.Handle.CompareAndSet(ctx, expected, updated)
}
