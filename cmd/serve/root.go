package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/netq/cmd/util"
	"github.com/ValentinKolb/netq/lib/logging"
	"github.com/ValentinKolb/netq/lib/network"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

var (
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start the netq echo server",
		Long:    `Start a TCP echo server that mirrors every received byte back to the sender. The configuration can be set via command line flags or environment variables. The format of the environment variables is NETQ_<flag> (e.g. NETQ_PORT=19999)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "port"
	ServeCmd.PersistentFlags().Uint16(key, 19999, cmdUtil.WrapString("The port to listen on. Port 0 lets the kernel pick a free port (the chosen port is logged on startup)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address to expose Prometheus metrics on (e.g. localhost:9102). Disabled when empty"))
}

// processConfig binds the command line flags and initializes logging
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	logging.InitLoggers(viper.GetString("log-level"))
	return nil
}

// run starts the echo server and serves until interrupted
func run(_ *cobra.Command, _ []string) error {
	server, err := network.NewServer(uint16(viper.GetUint("port")))
	if err != nil {
		return fmt.Errorf("failed to start server: %v", err)
	}
	defer server.Close()

	Logger.Infof("echo server listening on port %d", server.Port())

	// Optionally expose the library's counters for Prometheus scraping
	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		go func() {
			Logger.Infof("metrics exposed on http://%s/metrics", endpoint)
			if err := http.ListenAndServe(endpoint, mux); err != nil {
				Logger.Errorf("metrics endpoint: %v", err)
			}
		}()
	}

	// Track the connections currently being served, keyed by peer address
	active := xsync.NewMapOf[string, *network.Connection]()

	// Shut down on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			Logger.Infof("received %v, shutting down (%d connections active)", sig, active.Size())
			active.Range(func(_ string, conn *network.Connection) bool {
				conn.Close()
				return true
			})
			return nil
		default:
		}

		if !server.MayBeOpen() && !server.IsOpen() {
			return fmt.Errorf("server stopped unexpectedly")
		}

		// Pick up newly accepted clients
		if conn := server.IncomingConnection(); conn != nil {
			peer := conn.RemoteIP().String()
			active.Store(peer, conn)
			Logger.Infof("accepted %s (%d active)", peer, active.Size())
			go echo(conn, active)
			continue
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// echo mirrors every received byte back to the peer until the connection
// closes, then removes it from the registry.
func echo(conn *network.Connection, active *xsync.MapOf[string, *network.Connection]) {
	peer := conn.RemoteIP().String()

	for conn.IsOpen() {
		data := conn.ReceiveData()
		if len(data) == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		if !conn.SendData(data) {
			break
		}
	}

	active.Delete(peer)
	conn.Close()
	Logger.Infof("closed %s (%d active)", peer, active.Size())
}
