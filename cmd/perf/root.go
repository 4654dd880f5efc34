package perf

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	cmdUtil "github.com/ValentinKolb/netq/cmd/util"
	"github.com/ValentinKolb/netq/lib/logging"
	"github.com/ValentinKolb/netq/lib/network"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measure round-trip throughput against a netq echo server",
		Long:    `Open one or more connections to an echo server and bounce a fixed payload back and forth for a fixed duration, then report throughput and round-trip latency.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "address"
	PerfCmd.PersistentFlags().String(key, "127.0.0.1:19999", cmdUtil.WrapString("The numeric IPv4 address of the echo server in the form a.b.c.d:port"))

	key = "payload-size"
	PerfCmd.PersistentFlags().Int(key, 4096, cmdUtil.WrapString("Size of the payload bounced per round trip (in bytes)"))

	key = "duration"
	PerfCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("How long to run the benchmark (in seconds)"))

	key = "connections"
	PerfCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Number of concurrent connections to use"))
}

// processConfig binds the command line flags and initializes logging
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	logging.InitLoggers(viper.GetString("log-level"))
	return nil
}

// run executes the benchmark and prints a summary
func run(_ *cobra.Command, _ []string) error {
	addr, err := network.ParseIPv4Address(viper.GetString("address"))
	if err != nil {
		return err
	}

	var (
		payloadSize = viper.GetInt("payload-size")
		duration    = time.Duration(viper.GetInt("duration")) * time.Second
		connCount   = viper.GetInt("connections")
	)
	if payloadSize < 1 {
		return fmt.Errorf("payload-size must be at least 1")
	}
	if connCount < 1 {
		return fmt.Errorf("connections must be at least 1")
	}

	payload := bytes.Repeat([]byte{0xA5}, payloadSize)

	// Collect results in a private registry so repeated runs start clean
	registry := gometrics.NewRegistry()
	roundTrips := gometrics.GetOrRegisterMeter("round_trips", registry)
	latency := gometrics.GetOrRegisterTimer("round_trip_latency", registry)

	fmt.Printf("benchmarking %s: %d connection(s), %d byte payload, %s\n",
		addr, connCount, payloadSize, duration)

	deadline := time.Now().Add(duration)
	var wg sync.WaitGroup
	errCh := make(chan error, connCount)

	for i := 0; i < connCount; i++ {
		conn, err := network.Connect(addr)
		if err != nil {
			errCh <- fmt.Errorf("failed to connect to %s: %v", addr, err)
			break
		}

		wg.Add(1)
		go func(conn *network.Connection) {
			defer wg.Done()
			defer conn.Close()

			for time.Now().Before(deadline) && conn.IsOpen() {
				start := time.Now()
				if !conn.SendData(payload) {
					return
				}

				// Wait for the full echo of this payload before the next one
				for conn.ReceiveDataN(payloadSize) == nil {
					if !conn.IsOpen() || time.Now().After(deadline) {
						return
					}
					time.Sleep(time.Millisecond)
				}

				latency.UpdateSince(start)
				roundTrips.Mark(1)
			}
		}(conn)
	}

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return err
	}

	// Report
	count := roundTrips.Count()
	if count == 0 {
		return fmt.Errorf("no round trip completed; is an echo server running on %s?", addr)
	}

	totalBytes := count * int64(payloadSize)
	percentiles := latency.Percentiles([]float64{0.5, 0.95, 0.99})

	fmt.Printf("\nround trips : %d\n", count)
	fmt.Printf("throughput  : %.2f MB/s (echoed payload, both directions counted once)\n",
		float64(totalBytes)/duration.Seconds()/(1024*1024))
	fmt.Printf("latency mean: %.3f ms\n", latency.Mean()/float64(time.Millisecond))
	fmt.Printf("latency p50 : %.3f ms\n", percentiles[0]/float64(time.Millisecond))
	fmt.Printf("latency p95 : %.3f ms\n", percentiles[1]/float64(time.Millisecond))
	fmt.Printf("latency p99 : %.3f ms\n", percentiles[2]/float64(time.Millisecond))

	return nil
}
