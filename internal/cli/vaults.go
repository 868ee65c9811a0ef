package cli

import (
	"github.com/spf13/cobra"

	"deunifi/internal/app"
)

var vaultsOwner string

var vaultsCmd = &cobra.Command{
	Use:   "vaults",
	Short: "List the vaults an address owns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Vaults(cmd.Context(), app.VaultsOptions{Owner: vaultsOwner})
	},
}

func init() {
	vaultsCmd.Flags().StringVar(&vaultsOwner, "owner", "", "Owner address (defaults to vault.owner)")
}
