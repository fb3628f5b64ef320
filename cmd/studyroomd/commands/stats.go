package commands

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studysignal/studyroomd/pkg/relay"
)

var (
	statsPort         string
	statsPassword     string
	promptForPassword bool
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats [host]",
	Short: "Print stats from a studyroomd server",
	Long: `stats queries a studyroomd server for running stats.

If the host is omitted, the local studyroomd server will be queried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := "127.0.0.1"
		if len(args) > 0 {
			host = args[0]
		} else {
			// Use the options from the local server's configuration.
			if _, port, err := net.SplitHostPort(viper.GetString("server.bind")); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot determine local server port from config; using \"%s\"\n", statsPort)
			} else {
				statsPort = port
			}
			statsPassword = viper.GetString("server.statsPassword")
		}
		return getStats(host)
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsPort, "port", "P", "8080", "port of the server to query stats for")
	statsCmd.Flags().BoolVarP(&promptForPassword, "prompt-for-password", "p", false, "prompt for the server's stats password\n    If unset, the password is the same as the local server's.")

	viper.SetDefault("server.statsPassword", "")
}

func getStats(statsHost string) error {
	if promptForPassword {
		fmt.Printf("Password: ")
		pass, err := gopass.GetPasswd()
		if err != nil {
			return err
		}
		statsPassword = string(pass)
	}

	if statsPassword == "" {
		statsPassword = os.Getenv("STUDYROOMD_STATS_PASSWORD")
	}

	if statsPassword == "" {
		return errors.New("A stats password is required")
	}

	statsAddr := net.JoinHostPort(statsHost, statsPort)
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/stats", statsAddr), nil)
	if err != nil {
		return errors.Wrap(err, "Build stats request")
	}
	req.Header.Set("X-Stats-Password", statsPassword)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Connect to studyroomd server")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("Server returned an error: %s", resp.Status)
	}

	var stats relay.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return errors.Wrap(err, "Get stats response from server")
	}

	// Don't display the default port in the output.
	friendlyAddr := statsHost
	if statsPort != "8080" {
		friendlyAddr = statsAddr
	}
	fmt.Printf(`Stats for %s:
Uptime: %s
Number of rooms: %d
Max rooms: %d on %s

Number of connections: %d
Max connections: %d on %s
`, friendlyAddr, stats.Uptime,
		stats.NumRooms, stats.MaxRooms, stats.MaxRoomsAt,
		stats.NumConns, stats.MaxConns, stats.MaxConnsAt)
	return nil
}
