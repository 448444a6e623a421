package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/catalog"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/lock"
	"github.com/prn-tf/stockwarden/internal/notify"
	"github.com/prn-tf/stockwarden/internal/pkg/crypto"
	"github.com/prn-tf/stockwarden/internal/pkg/validation"
	"github.com/prn-tf/stockwarden/internal/report"
	"github.com/prn-tf/stockwarden/internal/storage"
)

// ReportService turns catalog snapshots into CSV reports, archives them and
// mails them as attachments.
type ReportService struct {
	store    *catalog.Store
	archive  storage.Archive
	notifier notify.Notifier
	locker   lock.Locker
	logger   zerolog.Logger
	config   ReportConfig
	now      func() time.Time
}

// ReportConfig contains report configuration.
type ReportConfig struct {
	// WorkDir holds each dispatch's generated file until Send returns.
	WorkDir string

	// DefaultRecipient receives reports sent without an explicit recipient.
	DefaultRecipient string

	// LockTTL bounds one dispatch to a recipient.
	LockTTL time.Duration
}

// NewReportService creates a new ReportService.
func NewReportService(
	store *catalog.Store,
	archive storage.Archive,
	notifier notify.Notifier,
	locker lock.Locker,
	logger zerolog.Logger,
	config ReportConfig,
) *ReportService {
	if config.WorkDir == "" {
		config.WorkDir = os.TempDir()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = time.Minute
	}
	return &ReportService{
		store:    store,
		archive:  archive,
		notifier: notifier,
		locker:   locker,
		logger:   logger.With().Str("service", "report").Logger(),
		config:   config,
		now:      time.Now,
	}
}

// SendReportInput contains the data needed to send a report.
type SendReportInput struct {
	// Recipient defaults to the configured recipient when empty.
	Recipient string `validate:"omitempty,email"`
}

// SendReportOutput contains the result of sending a report.
type SendReportOutput struct {
	Recipient string `json:"recipient"`
	FileName  string `json:"file_name"`
	Products  int    `json:"products"`

	// Key is the archive key of this dispatch's file.
	Key string `json:"key"`

	// Location is where the archive stored the file.
	Location string `json:"location"`

	// SHA256 is the hex digest of the archived file.
	SHA256 string `json:"sha256"`

	// DeliveryErr is set when the email could not be sent. The archived copy stands.
	DeliveryErr error `json:"-"`
}

// Send writes the current catalog as CSV, archives it and mails it.
func (s *ReportService) Send(ctx context.Context, input SendReportInput) (*SendReportOutput, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	recipient := input.Recipient
	if recipient == "" {
		recipient = s.config.DefaultRecipient
	}
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrInvalidArgument)
	}

	lockKey := lock.Keys.ReportDispatch(recipient)
	acquired, err := s.locker.Acquire(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire report lock: %w", err)
	}
	if !acquired {
		return nil, ErrReportInProgress
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Error().Err(err).Msg("Failed to release report lock")
		}
	}()

	now := s.now()
	name := report.FileName(now)
	dispatch := now.UTC().Format("150405") + "-" + uuid.NewString()[:8]
	snapshot := s.store.Snapshot()

	if err := os.MkdirAll(s.config.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report work dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.config.WorkDir, "dispatch-"+dispatch+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create report work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("failed to remove report work dir")
		}
	}()

	path := filepath.Join(dir, name)
	if err := report.WriteFile(path, snapshot); err != nil {
		return nil, err
	}

	key := storage.ReportKey(now, dispatch, name)
	location, checksum, err := s.archiveFile(ctx, key, path)
	if err != nil {
		return nil, err
	}

	out := &SendReportOutput{
		Recipient: recipient,
		FileName:  name,
		Products:  len(snapshot),
		Key:       key,
		Location:  location,
		SHA256:    checksum,
	}

	if err := s.notifier.Send(ctx, notify.ReportMessage(recipient, now, path)); err != nil {
		s.logger.Warn().Err(err).Str("recipient", recipient).Msg("report delivery failed")
		out.DeliveryErr = notify.AsFailure(err)
		return out, nil
	}

	s.logger.Info().
		Str("recipient", recipient).
		Str("location", location).
		Int("products", len(snapshot)).
		Msg("report sent")
	return out, nil
}

func (s *ReportService) archiveFile(ctx context.Context, key, path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	checksum, size, err := crypto.ComputeStreamSHA256(f)
	if err != nil {
		return "", "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("failed to rewind report: %w", err)
	}

	location, err := s.archive.Put(ctx, key, f, size)
	if err != nil {
		return "", "", fmt.Errorf("failed to archive report: %w", err)
	}
	return location, checksum, nil
}
