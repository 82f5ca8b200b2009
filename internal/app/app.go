package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"medrx/internal/config"
	"medrx/internal/database"
	"medrx/internal/encryption"
	"medrx/internal/monitor"
	"medrx/internal/reminder"
	"medrx/internal/repository"
	"medrx/internal/rx"
)

// PassphraseFunc supplies the passphrase that unlocks the private key. It is
// only called when the configured encryption needs one.
type PassphraseFunc func() (string, error)

// Options controls how NewMedRxApp builds the app.
type Options struct {
	// Command names the CLI command being run (e.g. "add", "watch").
	Command string
	// Passphrase is required when encryption type is "age".
	Passphrase PassphraseFunc
	// Verbose keeps debug records in the log.
	Verbose bool
}

// MedRxApp is the application layer between the CLI and rx.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings from the command line, and releases resources on Close.
type MedRxApp struct {
	cfg     *config.Config
	loc     *time.Location
	repo    rx.Repository
	intake  rx.IntakeLog
	service *rx.Service
	session *Session
	logger  *slog.Logger
	rxLog   rx.Logger
	logFile *os.File
}

// MedicationInput carries medication attributes as typed on the command line.
// Schedule uses the rx.ParseSchedule syntax and Times are "HH:MM" strings.
type MedicationInput struct {
	Name     string
	Strength string
	Schedule string
	Times    []string
}

// NewMedRxApp creates a fully wired MedRxApp from the given config.
// The caller must call Close when done.
func NewMedRxApp(cfg *config.Config, opts Options) (*MedRxApp, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	session := NewSession(opts.Command, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, session.ID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	rxLogger := &slogAdapter{l: logger}

	a := &MedRxApp{cfg: cfg, loc: loc, session: session, logger: logger, rxLog: rxLogger, logFile: logFile}
	fail := func(err error) (*MedRxApp, error) {
		a.Close()
		return nil, err
	}

	enc, dec, err := unlock(cfg.Encryption, opts.Passphrase)
	if err != nil {
		return fail(err)
	}

	mon := monitor.NewFSNotifyMonitor(rxLogger)
	a.repo, err = repository.NewRepositoryFromConfig(cfg.Repository, mon, rx.UUIDGenerator{}, rxLogger, enc, dec)
	if err != nil {
		return fail(fmt.Errorf("creating repository: %w", err))
	}

	a.intake, err = database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fail(fmt.Errorf("creating database: %w", err))
	}

	a.service = rx.NewService(a.repo, a.intake, rxLogger, rx.RealClock{}, rx.UUIDGenerator{}, loc)
	logger.Debug("app started", "command", opts.Command, "repository", cfg.Repository.Dir)
	return a, nil
}

// unlock builds the configured encryptor and its decryption context.
func unlock(cfg config.EncryptionConfig, passphrase PassphraseFunc) (rx.Encryptor, rx.DecryptionContext, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		return nil, nil, errors.New("encryption keys not found; run 'medrx keys init'")
	}

	var secret string
	if cfg.Type == "age" {
		if passphrase == nil {
			return nil, nil, errors.New("a passphrase is required to unlock medication files")
		}
		if secret, err = passphrase(); err != nil {
			return nil, nil, fmt.Errorf("reading passphrase: %w", err)
		}
	}
	dec, err := enc.Unlock(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("unlocking keys: %w", err)
	}
	return enc, dec, nil
}

// Location returns the configured calendar time zone.
func (a *MedRxApp) Location() *time.Location {
	return a.loc
}

// AddMedication parses in and saves a new medication.
func (a *MedRxApp) AddMedication(ctx context.Context, in MedicationInput) (rx.Medication, error) {
	if in.Schedule == "" {
		in.Schedule = rx.Daily{}.String()
	}
	draft, err := a.parse(in)
	if err != nil {
		return rx.Medication{}, err
	}
	return a.service.AddMedication(ctx, draft)
}

// EditMedication replaces the attributes of the referenced medication. Empty
// fields of in keep their current value; a nil Times keeps the current times.
func (a *MedRxApp) EditMedication(ctx context.Context, ref string, in MedicationInput) (rx.Medication, error) {
	current, err := a.service.ResolveMedication(ctx, ref)
	if err != nil {
		return rx.Medication{}, err
	}

	edit := current
	if in.Name != "" {
		edit.Name = in.Name
	}
	if in.Strength != "" {
		edit.Strength = in.Strength
	}
	if in.Schedule != "" {
		if edit.Schedule, err = rx.ParseSchedule(in.Schedule, a.loc); err != nil {
			return rx.Medication{}, err
		}
	}
	if in.Times != nil {
		if edit.Times, err = parseTimes(in.Times); err != nil {
			return rx.Medication{}, err
		}
	}
	return a.service.UpdateMedication(ctx, current.ID, edit)
}

// RemoveMedication deletes the referenced medication and returns it.
func (a *MedRxApp) RemoveMedication(ctx context.Context, ref string) (rx.Medication, error) {
	m, err := a.service.ResolveMedication(ctx, ref)
	if err != nil {
		return rx.Medication{}, err
	}
	return m, a.service.RemoveMedication(ctx, m.ID)
}

// ListMedications returns all medications ordered by name.
func (a *MedRxApp) ListMedications(ctx context.Context) ([]rx.Medication, error) {
	return a.service.ListMedications(ctx)
}

// Doses returns the doses due between the "YYYY-MM-DD" dates from and to,
// inclusive. Empty from means today; empty to means from plus days-1.
func (a *MedRxApp) Doses(ctx context.Context, from, to string, days int) ([]rx.Dose, error) {
	start := time.Now().In(a.loc)
	if from != "" {
		d, err := time.ParseInLocation(time.DateOnly, from, a.loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --from date %q: %w", from, err)
		}
		start = d
	}

	end := start.AddDate(0, 0, max(days, 1)-1)
	if to != "" {
		d, err := time.ParseInLocation(time.DateOnly, to, a.loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
		end = d
	}
	return a.service.UpcomingDoses(ctx, start, end)
}

// TakeDose records a dose of the referenced medication. at is either empty,
// which picks the dose that is due now, or an "HH:MM" time today.
func (a *MedRxApp) TakeDose(ctx context.Context, ref, at string) (*rx.DoseRecord, error) {
	m, err := a.service.ResolveMedication(ctx, ref)
	if err != nil {
		return nil, err
	}

	var scheduled time.Time
	if at == "" {
		due, err := a.service.DueDose(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.DisplayName(), err)
		}
		scheduled = due.At
	} else {
		tod, err := rx.ParseTimeOfDay(at)
		if err != nil {
			return nil, err
		}
		scheduled = tod.On(time.Now(), a.loc)
	}
	return a.service.RecordDose(ctx, m.ID, scheduled)
}

// History returns the logged doses of the referenced medication, newest first.
func (a *MedRxApp) History(ctx context.Context, ref string, limit int) (rx.Medication, []*rx.DoseRecord, error) {
	m, err := a.service.ResolveMedication(ctx, ref)
	if err != nil {
		return rx.Medication{}, nil, err
	}
	records, err := a.service.DoseHistory(ctx, m.ID, limit)
	return m, records, err
}

// Watch subscribes to the medication directory.
func (a *MedRxApp) Watch(ctx context.Context) (*rx.Subscription, error) {
	return a.service.Watch(ctx)
}

// Remind sends due doses to notify on the configured schedule until ctx is done.
func (a *MedRxApp) Remind(ctx context.Context, notify reminder.Notifier) error {
	r := reminder.New(a.service, notify, rx.RealClock{}, a.rxLog, a.loc)
	if err := r.Start(a.cfg.Reminder.Schedule); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}

func (a *MedRxApp) parse(in MedicationInput) (rx.Medication, error) {
	schedule, err := rx.ParseSchedule(in.Schedule, a.loc)
	if err != nil {
		return rx.Medication{}, err
	}
	times, err := parseTimes(in.Times)
	if err != nil {
		return rx.Medication{}, err
	}
	return rx.NewMedication(strings.TrimSpace(in.Name), strings.TrimSpace(in.Strength), schedule, times), nil
}

func parseTimes(values []string) ([]rx.TimeOfDay, error) {
	times := make([]rx.TimeOfDay, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := rx.ParseTimeOfDay(part)
			if err != nil {
				return nil, err
			}
			times = append(times, t)
		}
	}
	return times, nil
}

// Close releases the intake log and the log file.
func (a *MedRxApp) Close() error {
	var firstErr error
	if a.intake != nil {
		if err := a.intake.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logger != nil {
		a.logger.Debug("app closed", "elapsed", a.session.Elapsed(time.Now()))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
