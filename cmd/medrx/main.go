package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"medrx/internal/app"
	"medrx/internal/config"
	"medrx/internal/encryption"
	"medrx/internal/reminder"
	"medrx/internal/rx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// readConfig loads the config file named by the defaults.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a MedRxApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "add", "watch").
func newApp(command string) (*app.MedRxApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewMedRxApp(cfg, app.Options{
		Command:    command,
		Passphrase: func() (string, error) { return readPassphrase(false) },
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "medrx",
	Short:        "Medication reminders",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if tz, _ := cmd.Flags().GetString("timezone"); tz != "" {
			cfg.Timezone = tz
			if _, err := cfg.Location(); err != nil {
				return err
			}
		}
		if enc, _ := cmd.Flags().GetString("encryption"); enc != "" {
			cfg.Encryption.Type = enc
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Medications: %s\n", cfg.Repository.Dir)
		if cfg.Encryption.Type == "age" {
			fmt.Println("Run 'medrx keys init' to create encryption keys.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Timezone:    %s\n", cfg.Timezone)
		fmt.Printf("Medications: %s (%s)\n", cfg.Repository.Dir, cfg.Repository.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Database:    %s (%s)\n", cfg.Database.DataDir, cfg.Database.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase(true)
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}

		fmt.Printf("Keys created: %s, %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a medication",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("add")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.AddMedication(cmd.Context(), medicationInput(cmd))
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", m.DisplayName(), shortID(m))
		return nil
	},
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit MEDICATION",
	Short: "Change a medication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("edit")
		if err != nil {
			return err
		}
		defer a.Close()

		in := medicationInput(cmd)
		if !cmd.Flags().Changed("time") {
			in.Times = nil
		}
		m, err := a.EditMedication(cmd.Context(), args[0], in)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s (%s)\n", m.DisplayName(), shortID(m))
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm MEDICATION",
	Short: "Remove a medication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("rm")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.RemoveMedication(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", m.DisplayName())
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List medications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("list")
		if err != nil {
			return err
		}
		defer a.Close()

		meds, err := a.ListMedications(cmd.Context())
		if err != nil {
			return err
		}
		printMedications(meds)
		return nil
	},
}

// doses command
var dosesCmd = &cobra.Command{
	Use:   "doses",
	Short: "Show scheduled doses",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp("doses")
		if err != nil {
			return err
		}
		defer a.Close()

		doses, err := a.Doses(cmd.Context(), from, to, days)
		if err != nil {
			return err
		}
		if len(doses) == 0 {
			fmt.Println("No doses scheduled.")
			return nil
		}

		var day string
		for _, d := range doses {
			if s := d.At.Format("Mon 2006-01-02"); s != day {
				day = s
				fmt.Println(day)
			}
			mark := " "
			if d.Taken {
				mark = "x"
			}
			fmt.Printf("  [%s] %s  %s\n", mark, d.At.Format("15:04"), d.Medication.DisplayName())
		}
		return nil
	},
}

// take command
var takeCmd = &cobra.Command{
	Use:   "take MEDICATION",
	Short: "Record a dose as taken",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")

		a, err := newApp("take")
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.TakeDose(cmd.Context(), args[0], at)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded dose scheduled at %s\n", record.ScheduledAt.In(a.Location()).Format("2006-01-02 15:04"))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history MEDICATION",
	Short: "View taken doses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		m, records, err := a.History(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No doses of %s recorded.\n", m.DisplayName())
			return nil
		}

		loc := a.Location()
		for _, r := range records {
			fmt.Printf("%s  taken %s\n",
				r.ScheduledAt.In(loc).Format("2006-01-02 15:04"),
				r.TakenAt.In(loc).Format("2006-01-02 15:04"),
			)
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the medication list whenever it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("watch")
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.Watch(cmd.Context())
		if err != nil {
			return err
		}
		defer sub.Close()

		for snap := range sub.Updates() {
			fmt.Printf("--- %s\n", time.Now().In(a.Location()).Format("15:04:05"))
			if snap.Err != nil {
				fmt.Printf("error: %v\n", snap.Err)
				if errors.Is(snap.Err, rx.ErrDirectoryAccess) {
					return snap.Err
				}
				continue
			}
			printMedications(snap.Medications)
		}
		return nil
	},
}

// remind command
var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Announce doses as they come due until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("remind")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Waiting for doses. Press Ctrl-C to stop.")
		return a.Remind(cmd.Context(), reminder.NotifierFunc(func(_ context.Context, d rx.Dose) error {
			line := fmt.Sprintf("\a%s  take %s", d.At.In(a.Location()).Format("15:04"), d.Medication.DisplayName())
			if d.Medication.Strength != "" {
				line += " (" + d.Medication.Strength + ")"
			}
			_, err := fmt.Println(line)
			return err
		}))
	},
}

func medicationInput(cmd *cobra.Command) app.MedicationInput {
	name, _ := cmd.Flags().GetString("name")
	strength, _ := cmd.Flags().GetString("strength")
	schedule, _ := cmd.Flags().GetString("schedule")
	times, _ := cmd.Flags().GetStringSlice("time")
	return app.MedicationInput{Name: name, Strength: strength, Schedule: schedule, Times: times}
}

func printMedications(meds []rx.Medication) {
	if len(meds) == 0 {
		fmt.Println("No medications.")
		return
	}
	for _, m := range meds {
		times := make([]string, len(m.Times))
		for i, t := range m.Times {
			times[i] = t.String()
		}
		fmt.Printf("%s  %-30s  %-20s  %s\n", shortID(m), m.DisplayName(), m.Schedule, strings.Join(times, ","))
	}
}

func shortID(m rx.Medication) string {
	return m.ID.String()[:8]
}

func addMedicationFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Medication name")
	cmd.Flags().String("strength", "", "Strength, e.g. \"100 mg\"")
	cmd.Flags().String("schedule", "", "daily | every:<n>:<YYYY-MM-DD> | weekly:<mon,...> | monthly:<1,...> | off")
	cmd.Flags().StringSlice("time", nil, "Time of day as HH:MM (repeatable)")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("timezone", "", "IANA time zone for dose times (default: system zone)")
	configInitCmd.Flags().String("encryption", "", "Encryption for medication files: none or age")

	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(addCmd)
	addMedicationFlags(addCmd)
	addCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(editCmd)
	addMedicationFlags(editCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(dosesCmd)
	dosesCmd.Flags().String("from", "", "First day as YYYY-MM-DD (default: today)")
	dosesCmd.Flags().String("to", "", "Last day as YYYY-MM-DD")
	dosesCmd.Flags().Int("days", 7, "Number of days to show when --to is not set")
	rootCmd.AddCommand(takeCmd)
	takeCmd.Flags().String("at", "", "Scheduled time as HH:MM (default: the dose due now)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of doses to show")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(remindCmd)
}
