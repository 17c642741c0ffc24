package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quasar/mcfleet/internal/app"
	"github.com/quasar/mcfleet/internal/auth"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage registered bot accounts",
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Register an offline account under the given username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, profile, err := a.AuthOffline(args[0], nil)
		if err != nil {
			return err
		}
		fmt.Printf("Registered offline account %s\n  id:   %s\n  uuid: %s\n",
			profile.Username, id, profile.UUID)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered accounts and their credential validity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		clients := a.Clients()
		if len(clients) == 0 {
			fmt.Println("No accounts registered.")
			return nil
		}
		for _, c := range clients {
			kind := "offline"
			validity := "n/a"
			if c.Authenticated {
				kind = "microsoft"
				if exp := a.Validity(c.UUID); exp > 0 {
					t := time.Unix(exp, 0)
					if t.Before(time.Now()) {
						validity = fmt.Sprintf("expired %s", humanize.Time(t))
					} else {
						validity = fmt.Sprintf("valid until %s", humanize.Time(t))
					}
				} else {
					validity = "no cached credential"
				}
			}
			fmt.Printf("%s  %-16s  %-9s  %d instance(s)  %s\n",
				c.ID, c.Username, kind, c.InstanceCount, validity)
		}
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove [username|id]",
	Short: "Unregister an account and tear down its controller",
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
		if err := a.RemoveClient(info.UUID); err != nil {
			return err
		}
		fmt.Printf("Removed account %s\n", info.Username)
		return nil
	},
}

var accountRecallCmd = &cobra.Command{
	Use:   "recall [username|id]",
	Short: "Validate an account's cached credential, refreshing it if expired",
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
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		ok, err := a.Recall(ctx, info.ID, func(state auth.State) {
			fmt.Println(state.String())
		})
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("Account %s is ready.\n", info.Username)
		}
		return nil
	},
}

// resolveAccount accepts either a username or an account id.
func resolveAccount(a *app.App, ref string) (app.ClientInfo, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if info, ok := a.Client(id); ok {
			return info, nil
		}
		return app.ClientInfo{}, fmt.Errorf("no account with id %s", ref)
	}
	for _, c := range a.Clients() {
		if strings.EqualFold(c.Username, ref) {
			return c, nil
		}
	}
	return app.ClientInfo{}, fmt.Errorf("no account named %q", ref)
}

func init() {
	accountCmd.AddCommand(accountRegisterCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountRemoveCmd)
	accountCmd.AddCommand(accountRecallCmd)
}
