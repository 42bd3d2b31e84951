package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labtable/internal/repository/postgres"
	"labtable/internal/service"
)

var genCodesCmd = &cobra.Command{
	Use:   "gen-codes",
	Short: "Generate unused redeem codes",
	Long:  "Generates random redeem codes from an alphabet without look-alike characters and stores them as unused. Codes are printed one per line.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		count, _ := cmd.Flags().GetInt("count")
		length, _ := cmd.Flags().GetInt("length")
		amount, _ := cmd.Flags().GetInt64("amount")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		codes, err := service.NewCodeService(postgres.NewRedeemCodeRepo(db)).Generate(cmd.Context(), service.GenerateCodesInput{
			Count:  count,
			Length: length,
			Amount: amount,
		})
		if err != nil {
			return err
		}
		for _, c := range codes {
			fmt.Fprintln(os.Stdout, c.Code)
		}
		zap.L().Info("redeem codes generated", zap.Int("count", len(codes)), zap.Int64("amount", amount))
		return nil
	},
}

func init() {
	genCodesCmd.Flags().Int("count", 10, "number of codes to generate")
	genCodesCmd.Flags().Int("length", 18, "code length (8-64)")
	genCodesCmd.Flags().Int64("amount", 10, "credits granted per code")
}
