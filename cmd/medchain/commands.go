package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/config"
	"github.com/medchain/medchain/internal/domain/hospital"
)

// withCore loads config and runs fn against a core app. The state store is
// single-process, so these commands fail while `serve` holds it.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newCore(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// requireSession returns a readable error when nobody is logged in.
func requireSession(ctx context.Context, a *app) error {
	_, err := a.sessions.Current(ctx)
	if errors.Is(err, apperr.ErrNoSession) {
		return fmt.Errorf("not logged in: run `medchain login` first")
	}
	return err
}

func loginCmd() *cobra.Command {
	var hospitalID, privateKey string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate the hospital and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.sessions.Login(ctx, hospitalID, privateKey)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", sess.HospitalID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hospitalID, "hospital-id", "", "hospital identifier")
	cmd.Flags().StringVar(&privateKey, "private-key", "", "hospital private key")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				if err := a.sessions.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in hospital",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.sessions.Current(ctx)
				if errors.Is(err, apperr.ErrNoSession) {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
					return nil
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Hospital: %s\n", sess.HospitalID)
				if sess.ExpiresAt != nil {
					fmt.Fprintf(out, "Expires:  %s\n", sess.ExpiresAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}

func onboardingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Manage the first-run onboarding flag",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Mark onboarding as seen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				return a.store.MarkOnboardingSeen(ctx)
			})
		},
	})
	return cmd
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <payload>",
		Short: "Verify a scanned credential and print the patient document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				if err := requireSession(ctx, a); err != nil {
					return err
				}
				doc, err := a.pipeline.Run(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Kind: %s\n", doc.Kind())
				return printJSON(out, doc)
			})
		},
	}
}

func verifyMedicationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-medication <payload>",
		Short: "Verify a scanned drug unit and print its custody history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				if err := requireSession(ctx, a); err != nil {
					return err
				}
				med, err := a.medications.VerifyScanned(ctx, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), med)
			})
		},
	}
}

func registerHospitalCmd() *cobra.Command {
	var r hospital.Registration
	cmd := &cobra.Command{
		Use:   "register-hospital",
		Short: "Create the hospital's Hedera account, paid by an operator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				if err := requireSession(ctx, a); err != nil {
					return err
				}
				h, err := a.hospitals.Register(ctx, r)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Registered %s as %s. Store the private key now: it is not kept.\n", h.Name, h.ID)
				return printJSON(out, h)
			})
		},
	}
	cmd.Flags().StringVar(&r.HospitalName, "name", "", "hospital name")
	cmd.Flags().StringVar(&r.OperatorAccountID, "operator-id", "", "operator account id (0.0.x)")
	cmd.Flags().StringVar(&r.OperatorPrivateKey, "operator-key", "", "operator private key")
	return cmd
}

func hospitalBalanceCmd() *cobra.Command {
	var r hospital.BalanceRequest
	cmd := &cobra.Command{
		Use:   "hospital-balance <account-id>",
		Short: "Show a Hedera account balance in tinybars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, a *app) error {
				if err := requireSession(ctx, a); err != nil {
					return err
				}
				r.AccountID = args[0]
				b, err := a.hospitals.Balance(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tinybars\n", b.AccountID, b.Tinybars)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&r.OperatorAccountID, "operator-id", "", "operator account id (0.0.x)")
	cmd.Flags().StringVar(&r.OperatorPrivateKey, "operator-key", "", "operator private key")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
