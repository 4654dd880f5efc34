package send

import (
	"fmt"
	"time"

	cmdUtil "github.com/ValentinKolb/netq/cmd/util"
	"github.com/ValentinKolb/netq/lib/logging"
	"github.com/ValentinKolb/netq/lib/network"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	SendCmd = &cobra.Command{
		Use:     "send [message]",
		Short:   "Send a message to a netq echo server and print the reply",
		Args:    cobra.ExactArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "address"
	SendCmd.PersistentFlags().String(key, "127.0.0.1:19999", cmdUtil.WrapString("The numeric IPv4 address of the server in the form a.b.c.d:port"))

	key = "timeout"
	SendCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("How many seconds to wait for the reply"))
}

// processConfig binds the command line flags and initializes logging
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	logging.InitLoggers(viper.GetString("log-level"))
	return nil
}

// run connects, sends the message and waits for the echoed reply
func run(_ *cobra.Command, args []string) error {
	addr, err := network.ParseIPv4Address(viper.GetString("address"))
	if err != nil {
		return err
	}

	conn, err := network.Connect(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", addr, err)
	}
	defer conn.Close()

	message := args[0]
	if !conn.SendString(message) {
		return fmt.Errorf("connection to %s closed before the message could be queued", addr)
	}

	// The reply may arrive split across several reads; collect until we have
	// as many bytes as we sent or the timeout expires.
	deadline := time.Now().Add(time.Duration(viper.GetInt("timeout")) * time.Second)
	reply := make([]byte, 0, len(message))
	for time.Now().Before(deadline) {
		if data := conn.ReceiveData(); len(data) > 0 {
			reply = append(reply, data...)
			if len(reply) >= len(message) {
				fmt.Printf("%s\n", reply)
				return nil
			}
			continue
		}
		if !conn.IsOpen() {
			return fmt.Errorf("connection closed by %s before the reply arrived", addr)
		}
		time.Sleep(time.Millisecond)
	}

	return fmt.Errorf("timed out waiting for the reply from %s", addr)
}
