package main

import (
	"fmt"

	"meetrelay/internal/peer"

	"github.com/spf13/cobra"
)

var flagHost string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a meeting and print its id",
	Long: `Create a meeting hosted by the given name.

Examples:
  meetpeer create --host Alice
  meetpeer --server https://relay.example.com create --host Alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := peer.NewDirectoryClient(flagServer, nil)
		id, err := client.CreateMeeting(cmd.Context(), flagHost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&flagHost, "host", "", "host display name")
	_ = createCmd.MarkFlagRequired("host")
}
