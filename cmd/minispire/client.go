package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiffe/go-spiffe/v2/svid/jwtsvid"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

var (
	socketPath string
	audience   string
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the SPIFFE ID the server attests this process as",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client, err := workloadapi.New(ctx, workloadapi.WithAddr("unix://"+socketPath))
		if err != nil {
			return fmt.Errorf("failed to create workload API client: %w", err)
		}
		defer client.Close()

		svid, err := client.FetchJWTSVID(ctx, jwtsvid.Params{Audience: audience})
		if err != nil {
			return fmt.Errorf("failed to fetch JWT-SVID: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), svid.ID.String())
		return nil
	},
}

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Print the credentials of the process serving the socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
		if err != nil {
			return err
		}
		defer conn.Close()

		desc, err := describePeer(conn.(*net.UnixConn))
		if err != nil {
			return fmt.Errorf("failed to read peer credentials: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), desc)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{whoamiCmd, peerCmd} {
		c.Flags().StringVar(&socketPath, "socket", defaultSocketPath, "Path to the Workload API socket")
	}
	whoamiCmd.Flags().StringVar(&audience, "audience", "minispire", "Audience of the JWT-SVID used to identify the caller")
}
