package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serverPort uint16

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the registered server list",
}

var serverAddCmd = &cobra.Command{
	Use:   "add [name] [ip]",
	Short: "Register a server under a unique name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddServer(args[0], args[1], serverPort); err != nil {
			return err
		}
		fmt.Printf("Added server %s (%s:%d)\n", args[0], args[1], serverPort)
		return nil
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Delete a registered server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteServer(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed server %s\n", args[0])
		return nil
	},
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		servers := a.Servers()
		if len(servers) == 0 {
			fmt.Println("No servers registered.")
			return nil
		}
		for _, s := range servers {
			fmt.Printf("%-16s  %s\n", s.Name, s.Addr())
		}
		return nil
	},
}

func init() {
	serverAddCmd.Flags().Uint16Var(&serverPort, "port", 25565, "Server port")

	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverListCmd)
}
