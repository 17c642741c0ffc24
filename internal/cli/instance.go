package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quasar/mcfleet/internal/app"
	"github.com/quasar/mcfleet/internal/core"
)

var instanceVersion string

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Manage an account's connection instances",
}

var instanceCreateCmd = &cobra.Command{
	Use:   "create [account] [server]",
	Short: "Create a stopped connection instance against a registered server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := resolveAccount(a, args[0])
		if err != nil {
			return err
		}
		if ok, err := a.Recall(cmd.Context(), info.ID, nil); !ok {
			return err
		}

		var version core.Version
		if instanceVersion != "" {
			version, err = core.ParseVersion(instanceVersion)
			if err != nil {
				return err
			}
		}
		id, err := a.CreateConnection(info.ID, args[1], version)
		if err != nil {
			return err
		}
		fmt.Printf("Created instance %s for %s on %s\n", id, info.Username, args[1])
		return nil
	},
}

var instanceRemoveCmd = &cobra.Command{
	Use:   "remove [account] [instance-id]",
	Short: "Tear down an instance and forget its configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, instanceID, err := resolveInstanceArgs(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}
		if err := a.RemoveConnection(info.ID, instanceID); err != nil {
			return err
		}
		fmt.Printf("Removed instance %s\n", instanceID)
		return nil
	},
}

var instanceListCmd = &cobra.Command{
	Use:   "list [account]",
	Short: "List an account's instances with their running state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := resolveAccount(a, args[0])
		if err != nil {
			return err
		}
		if ok, err := a.Recall(cmd.Context(), info.ID, nil); !ok {
			return err
		}
		instances, err := a.Instances(info.ID)
		if err != nil {
			return err
		}
		if len(instances) == 0 {
			fmt.Printf("No instances for %s.\n", info.Username)
			return nil
		}
		for _, inst := range instances {
			state := "stopped"
			if inst.Running {
				state = "running"
			}
			fmt.Printf("%s  %-8s  %-8s  %s\n", inst.ID, state, inst.Version, inst.Server.Addr())
		}
		return nil
	},
}

var instanceRunCmd = &cobra.Command{
	Use:   "run [account] [instance-id]",
	Short: "Connect an instance and stream its events until interrupted",
	Long: `Connects the instance and keeps it in the foreground. Lines typed on
stdin are sent as chat messages. Ctrl-C requests a graceful stop (observed
on the next tick), bounded by the soft-kill grace period.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, instanceID, err := resolveInstanceArgs(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}
		if err := a.ConnectInstance(info.ID, instanceID); err != nil {
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := a.SendChat(info.ID, instanceID, line); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		}()

		<-sig
		fmt.Println("\nStopping...")
		if err := a.DisconnectInstance(info.ID, instanceID); err != nil {
			return a.KillInstance(info.ID, instanceID)
		}
		return a.SoftKillInstance(info.ID, instanceID)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List supported protocol versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, v := range a.AvailableVersions() {
			marker := " "
			if v == core.DefaultVersion() {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, v)
		}
		return nil
	},
}

// resolveInstanceArgs resolves the account, rebuilds its controller, and
// parses the instance id.
func resolveInstanceArgs(ctx context.Context, a *app.App, accountRef, instanceRef string) (app.ClientInfo, uuid.UUID, error) {
	info, err := resolveAccount(a, accountRef)
	if err != nil {
		return app.ClientInfo{}, uuid.Nil, err
	}
	recallCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if ok, err := a.Recall(recallCtx, info.ID, nil); !ok {
		return app.ClientInfo{}, uuid.Nil, err
	}
	instanceID, err := uuid.Parse(instanceRef)
	if err != nil {
		return app.ClientInfo{}, uuid.Nil, fmt.Errorf("invalid instance id %q: %w", instanceRef, err)
	}
	return info, instanceID, nil
}

func init() {
	instanceCreateCmd.Flags().StringVar(&instanceVersion, "version", "", "Protocol version (default: latest supported)")

	instanceCmd.AddCommand(instanceCreateCmd)
	instanceCmd.AddCommand(instanceRemoveCmd)
	instanceCmd.AddCommand(instanceListCmd)
	instanceCmd.AddCommand(instanceRunCmd)
}
