package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"labtable/internal/ledger"
	"labtable/internal/repository/postgres"
	"labtable/internal/service"
)

var createAccountCmd = &cobra.Command{
	Use:   "create-account <account-id>",
	Short: "Create an account with an initial balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("LABTABLE_NEW_ACCOUNT_PASSWORD")
		}
		input := service.RegisterInput{AccountID: args[0], Password: password}
		if cmd.Flags().Changed("balance") {
			b, _ := cmd.Flags().GetInt64("balance")
			input.Balance = &b
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		accounts := postgres.NewAccountRepo(db)
		l := ledger.New(accounts, postgres.NewUsageLogRepo(db), postgres.NewRedeemCodeRepo(db), ledger.Config{IdleTimeout: cfg.Ledger.IdleTimeout})
		defer l.Close()

		account, err := service.NewAuthService(accounts, l, cfg.JWT, cfg.Auth).Register(cmd.Context(), input)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "created %s with balance %d\n", account.ID, account.Balance)
		return nil
	},
}

func init() {
	createAccountCmd.Flags().String("password", "", "account password (or LABTABLE_NEW_ACCOUNT_PASSWORD)")
	createAccountCmd.Flags().Int64("balance", 0, "initial balance (defaults to auth.initial_balance)")
}
