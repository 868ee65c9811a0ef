package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"deunifi/internal/app"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the expected outcome of a vault operation",
}

var (
	lockSigner             string
	lockProxy              string
	lockTokenA             string
	lockTokenB             string
	lockTokenAFromSigner   string
	lockTokenBFromSigner   string
	lockDaiFromSigner      string
	lockCollateralFromUser string
	lockSlippagePct        float64
	lockDeadlineMinutes    int64
	lockUseEth             bool
)

var planLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Plan a LockAndDraw operation and assemble its calldata",
	RunE: func(cmd *cobra.Command, args []string) error {
		if lockSigner == "" || lockProxy == "" {
			return errors.New("--signer and --proxy are required")
		}
		return getApp().PlanLock(cmd.Context(), app.LockPlanOptions{
			Signer:             lockSigner,
			Proxy:              lockProxy,
			TokenAToLock:       lockTokenA,
			TokenBToLock:       lockTokenB,
			TokenAFromSigner:   lockTokenAFromSigner,
			TokenBFromSigner:   lockTokenBFromSigner,
			DaiFromSigner:      lockDaiFromSigner,
			CollateralFromUser: lockCollateralFromUser,
			SlippagePct:        lockSlippagePct,
			DeadlineMinutes:    lockDeadlineMinutes,
			UseEth:             lockUseEth,
		})
	},
}

var (
	wipeSigner           string
	wipeProxy            string
	wipeDaiToPayback     string
	wipeDaiFromSigner    string
	wipeCollateralToFree string
	wipeCollateralToUse  string
	wipeDaiFromTokenA    string
	wipeDaiFromTokenB    string
	wipeSlippagePct      float64
	wipeDeadlineMinutes  int64
	wipeReceiveEth       bool
)

var planWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Plan a WipeAndFree operation and assemble its calldata",
	RunE: func(cmd *cobra.Command, args []string) error {
		if wipeSigner == "" || wipeProxy == "" {
			return errors.New("--signer and --proxy are required")
		}
		return getApp().PlanWipe(cmd.Context(), app.WipePlanOptions{
			Signer:                        wipeSigner,
			Proxy:                         wipeProxy,
			DaiToPayback:                  wipeDaiToPayback,
			DaiFromSigner:                 wipeDaiFromSigner,
			CollateralToFree:              wipeCollateralToFree,
			CollateralToUseToPayFlashLoan: wipeCollateralToUse,
			DaiFromTokenA:                 wipeDaiFromTokenA,
			DaiFromTokenB:                 wipeDaiFromTokenB,
			SlippagePct:                   wipeSlippagePct,
			DeadlineMinutes:               wipeDeadlineMinutes,
			ReceiveEth:                    wipeReceiveEth,
		})
	},
}

func init() {
	planLockCmd.Flags().StringVar(&lockSigner, "signer", "", "Transaction signer address")
	planLockCmd.Flags().StringVar(&lockProxy, "proxy", "", "DSProxy address of the signer")
	planLockCmd.Flags().StringVar(&lockTokenA, "token-a", "", "Token A amount to lock")
	planLockCmd.Flags().StringVar(&lockTokenB, "token-b", "", "Token B amount to lock")
	planLockCmd.Flags().StringVar(&lockTokenAFromSigner, "token-a-from-signer", "", "Token A covered from the signer's balance")
	planLockCmd.Flags().StringVar(&lockTokenBFromSigner, "token-b-from-signer", "", "Token B covered from the signer's balance")
	planLockCmd.Flags().StringVar(&lockDaiFromSigner, "dai-from-signer", "", "DAI covered from the signer's balance")
	planLockCmd.Flags().StringVar(&lockCollateralFromUser, "collateral-from-user", "", "LP collateral supplied directly")
	planLockCmd.Flags().Float64Var(&lockSlippagePct, "slippage", 0, "Slippage tolerance percent (defaults to config)")
	planLockCmd.Flags().Int64Var(&lockDeadlineMinutes, "deadline", 0, "Deadline in minutes (defaults to config)")
	planLockCmd.Flags().BoolVar(&lockUseEth, "use-eth", false, "Pay WETH legs with native ETH")

	planWipeCmd.Flags().StringVar(&wipeSigner, "signer", "", "Transaction signer address")
	planWipeCmd.Flags().StringVar(&wipeProxy, "proxy", "", "DSProxy address of the signer")
	planWipeCmd.Flags().StringVar(&wipeDaiToPayback, "payback", "", "DAI debt to pay back")
	planWipeCmd.Flags().StringVar(&wipeDaiFromSigner, "dai-from-signer", "", "DAI covered from the signer's balance")
	planWipeCmd.Flags().StringVar(&wipeCollateralToFree, "free", "", "Collateral to free from the vault")
	planWipeCmd.Flags().StringVar(&wipeCollateralToUse, "use", "", "Freed collateral used to repay the flash loan")
	planWipeCmd.Flags().StringVar(&wipeDaiFromTokenA, "dai-from-token-a", "", "Debt share covered by selling token A")
	planWipeCmd.Flags().StringVar(&wipeDaiFromTokenB, "dai-from-token-b", "", "Debt share covered by selling token B")
	planWipeCmd.Flags().Float64Var(&wipeSlippagePct, "slippage", 0, "Slippage tolerance percent (defaults to config)")
	planWipeCmd.Flags().Int64Var(&wipeDeadlineMinutes, "deadline", 0, "Deadline in minutes (defaults to config)")
	planWipeCmd.Flags().BoolVar(&wipeReceiveEth, "receive-eth", false, "Receive WETH legs as native ETH")

	planCmd.AddCommand(planLockCmd)
	planCmd.AddCommand(planWipeCmd)
}
