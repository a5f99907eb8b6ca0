// Command nursectl runs the clinical rules from the shell and manages the
// database schema.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jwalitptl/nursing-api/internal/config"
	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository/postgres"
	"github.com/jwalitptl/nursing-api/internal/rules/allergy"
	"github.com/jwalitptl/nursing-api/internal/rules/notes"
	"github.com/jwalitptl/nursing-api/internal/rules/visibility"
	"github.com/jwalitptl/nursing-api/internal/rules/vitals"
	"github.com/jwalitptl/nursing-api/migrations"
	"github.com/jwalitptl/nursing-api/pkg/auth"
	"github.com/jwalitptl/nursing-api/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nursectl",
		Short:        "Clinical safety rules and schema tooling",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")

	rootCmd.AddCommand(checkMedicationCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(shiftCmd())
	rootCmd.AddCommand(noteWindowCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

// render writes v in the format chosen by --output. YAML goes through the
// JSON encoding so both formats share field names.
func render(cmd *cobra.Command, v interface{}) error {
	format, _ := cmd.Flags().GetString("output")
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "yaml":
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

func checkMedicationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-medication MEDICATION",
		Short: "Match a medication against an allergy list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allergies, _ := cmd.Flags().GetString("allergies")
			tablesFile, _ := cmd.Flags().GetString("tables")

			tables := allergy.DefaultTables()
			if tablesFile != "" {
				f, err := os.Open(tablesFile)
				if err != nil {
					return err
				}
				defer f.Close()
				if tables, err = allergy.LoadTables(f); err != nil {
					return err
				}
			}

			matcher := allergy.NewMatcher(tables)
			return render(cmd, matcher.ValidateMedicationForPatient(args[0], &model.Patient{Allergies: allergies}))
		},
	}
	cmd.Flags().String("allergies", "", "Comma-separated allergy list as stored on the chart")
	cmd.Flags().String("tables", "", "Drug class tables file (defaults to the built-in tables)")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "classify PARAM=VALUE...",
		Short:   "Classify a set of vital signs",
		Example: "  nursectl classify spo2=91 heart_rate=104 temperature=38,4",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make(map[string]string, len(args))
			for _, arg := range args {
				name, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected PARAM=VALUE, got %q", arg)
				}
				raw[name] = value
			}
			b, err := vitals.ParseBundle(raw)
			if err != nil {
				return err
			}
			summary := vitals.Default().ValidateAll(b)
			return render(cmd, struct {
				Summary  vitals.Summary      `json:"summary"`
				Required vitals.Confirmation `json:"required_confirmation"`
			}{summary, summary.RequiredConfirmation()})
		},
	}
}

func parseInstant(cmd *cobra.Command, flag string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(flag)
	if v == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return t, nil
}

func shiftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Show which shift an instant falls in",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseInstant(cmd, "at")
			if err != nil {
				return err
			}
			tz, _ := cmd.Flags().GetString("timezone")
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return err
			}
			at = at.In(loc)
			return render(cmd, map[string]interface{}{
				"at":    at.Format(time.RFC3339),
				"shift": visibility.DefaultSchedule().CurrentShift(at),
			})
		},
	}
	cmd.Flags().String("at", "", "Instant in RFC 3339 (defaults to now)")
	cmd.Flags().String("timezone", "Local", "Ward time zone")
	return cmd
}

func noteWindowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note-window",
		Short: "Report whether a note written at --created is still editable",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, _ := cmd.Flags().GetString("created")
			createdAt, err := time.Parse(time.RFC3339, created)
			if err != nil {
				return fmt.Errorf("--created: %w", err)
			}
			at, err := parseInstant(cmd, "at")
			if err != nil {
				return err
			}
			return render(cmd, notes.NewGuard().IsEditable(model.ClinicalNote{CreatedAt: createdAt}, at))
		},
	}
	cmd.Flags().String("created", "", "Note creation instant in RFC 3339")
	cmd.Flags().String("at", "", "Instant to evaluate at (defaults to now)")
	_ = cmd.MarkFlagRequired("created")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			log := logger.FromSettings(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			count, err := postgres.NewMigrator(db, migrations.FS, log).Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a caregiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("caregiver-id")
			role, _ := cmd.Flags().GetString("role")
			secret, _ := cmd.Flags().GetString("secret")
			expiry, _ := cmd.Flags().GetDuration("expiry")

			caregiverID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("--caregiver-id: %w", err)
			}
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWT.Secret
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: pass --secret or set NURSING_JWT_SECRET")
			}

			token, err := auth.NewJWTService(secret, expiry).GenerateAccessToken(&model.Caregiver{
				ID:   caregiverID,
				Role: model.Role(role),
			})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), token+"\n")
			return err
		},
	}
	cmd.Flags().String("caregiver-id", "", "Caregiver UUID")
	cmd.Flags().String("role", string(model.RoleNurse), "Caregiver role")
	cmd.Flags().String("secret", "", "Signing secret (defaults to the configured one)")
	cmd.Flags().Duration("expiry", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("caregiver-id")
	return cmd
}
