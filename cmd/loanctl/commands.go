package main

import (
	"context"
	"fmt"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/database"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/pkg/auth"
	"github.com/segyhp/loan-ledger/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loanctl",
		Short:         "Loan ledger operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(), tokenCmd(), emiCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := database.Open(ctx, database.Options{
				Driver: cfg.Database.Driver,
				DSN:    cfg.Database.DSN(),
			})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.Database.Driver)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		roles   []string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			for _, role := range roles {
				switch role {
				case auth.RoleAdmin, auth.RoleOperator, auth.RoleCustomer:
				default:
					return fmt.Errorf("unknown role %q", role)
				}
			}

			jwtService, err := auth.NewJWTService(auth.JWTConfig{
				Secret:     cfg.Auth.JWTSecret,
				Issuer:     cfg.Auth.JWTIssuer,
				Expiration: cfg.Auth.JWTExpiration,
			})
			if err != nil {
				return err
			}

			token, err := jwtService.GenerateToken(subject, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (the applicant or operator ID)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleCustomer}, "Roles to embed (admin, operator, customer)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func emiCmd() *cobra.Command {
	var (
		amount string
		rate   string
		term   int
	)

	cmd := &cobra.Command{
		Use:   "emi",
		Short: "Print the weekly installment for a principal, term and annual rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			principal, err := utils.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			explicitRate, err := utils.ParseOptionalAmount(rate)
			if err != nil {
				return fmt.Errorf("--rate: %w", err)
			}
			annualRate := cfg.GetDefaultInterestRate()
			if explicitRate != nil {
				annualRate = *explicitRate
			}

			calculator := amortization.NewCalculator(cfg.Business.WeeksPerYear, cfg.Business.RatePercentScale)
			payment, err := calculator.PeriodicPayment(principal, annualRate, term)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "annual rate:        %s\n", annualRate.String())
			fmt.Fprintf(out, "weekly installment: %s\n", utils.FormatAmount(payment))
			fmt.Fprintf(out, "total repayable:    %s\n", utils.FormatAmount(payment.Mul(decimal.NewFromInt(int64(term)))))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Principal")
	cmd.Flags().IntVar(&term, "term", 0, "Term in weeks")
	cmd.Flags().StringVar(&rate, "rate", "", "Annual interest rate in percent (default DEFAULT_INTEREST_RATE)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("term")

	return cmd
}
