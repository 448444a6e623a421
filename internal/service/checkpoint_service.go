package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/catalog"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/lock"
	"github.com/prn-tf/stockwarden/internal/metrics"
	"github.com/prn-tf/stockwarden/internal/report"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// CheckpointService hydrates the catalog at startup and flushes it to the
// product repository (and optionally a CSV file) on a schedule.
type CheckpointService struct {
	store    *catalog.Store
	products repository.ProductRepository
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	config   CheckpointConfig
	now      func() time.Time

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// CheckpointConfig contains checkpoint configuration.
type CheckpointConfig struct {
	// Interval is how often the catalog is flushed.
	Interval time.Duration

	// CSVPath is read when the repository is empty and rewritten on every flush.
	// Empty disables CSV.
	CSVPath string

	// SeedDefaults loads the sample products when no other source has data.
	SeedDefaults bool

	// LockTTL bounds how long one flush may hold the checkpoint lock.
	LockTTL time.Duration
}

// DefaultCheckpointConfig returns sensible defaults.
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Interval:     5 * time.Minute,
		SeedDefaults: true,
		LockTTL:      1 * time.Minute,
	}
}

// NewCheckpointService creates a new CheckpointService.
func NewCheckpointService(
	store *catalog.Store,
	products repository.ProductRepository,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config CheckpointConfig,
) *CheckpointService {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultCheckpointConfig().LockTTL
	}
	return &CheckpointService{
		store:    store,
		products: products,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("service", "checkpoint").Logger(),
		config:   config,
		now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// =============================================================================
// Hydrate
// =============================================================================

// Hydration sources, in the order they are tried.
const (
	SourceRepository = "repository"
	SourceCSV        = "csv"
	SourceSeed       = "seed"
	SourceNone       = "none"
)

// HydrateResult describes where the catalog was loaded from.
type HydrateResult struct {
	Source  string
	Loaded  int
	Skipped int
}

// Hydrate replaces the catalog with the first source that has data: the
// product repository, then the CSV file, then the default seed products.
func (c *CheckpointService) Hydrate(ctx context.Context) (HydrateResult, error) {
	stored, err := c.products.List(ctx)
	if err != nil {
		return HydrateResult{}, fmt.Errorf("failed to load products: %w", err)
	}
	if len(stored) > 0 {
		return c.load(SourceRepository, stored, 0)
	}

	if c.config.CSVPath != "" {
		imported, res, err := report.ReadFile(c.config.CSVPath, c.logger)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			c.logger.Debug().Str("path", c.config.CSVPath).Msg("no catalog file to import")
		case err != nil:
			return HydrateResult{}, fmt.Errorf("failed to import %s: %w", c.config.CSVPath, err)
		case len(imported) > 0:
			return c.load(SourceCSV, imported, res.Skipped)
		}
	}

	if c.config.SeedDefaults {
		return c.load(SourceSeed, SeedProducts(c.now()), 0)
	}

	c.metrics.CatalogSize(0)
	return HydrateResult{Source: SourceNone}, nil
}

func (c *CheckpointService) load(source string, products []domain.Product, skipped int) (HydrateResult, error) {
	if err := c.store.Replace(products); err != nil {
		return HydrateResult{}, fmt.Errorf("failed to hydrate catalog from %s: %w", source, err)
	}
	c.metrics.CatalogSize(len(products))

	c.logger.Info().
		Str("source", source).
		Int("loaded", len(products)).
		Int("skipped", skipped).
		Msg("catalog hydrated")

	return HydrateResult{Source: source, Loaded: len(products), Skipped: skipped}, nil
}

// SeedProducts returns the sample catalog, dated today.
func SeedProducts(now time.Time) []domain.Product {
	today := truncateDay(now)
	return []domain.Product{
		{ID: "1", Name: "Laptop", Category: "Electronics", Price: 120000, Quantity: 45, UpdatedAt: today, Supplier: "ViewTech Inc."},
		{ID: "2", Name: "Keyboard", Category: "Electronics", Price: 4000, Quantity: 45, UpdatedAt: today, Supplier: "Key Ltd."},
		{ID: "3", Name: "Chair", Category: "Furnitures", Price: 4500, Quantity: 56, UpdatedAt: today, Supplier: "Vasanthan Co."},
	}
}

// =============================================================================
// Scheduler
// =============================================================================

// Start begins the flush scheduler.
func (c *CheckpointService) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info().
		Dur("interval", c.config.Interval).
		Str("csv_path", c.config.CSVPath).
		Msg("Starting checkpoint scheduler")

	go c.runLoop()
}

// Stop stops the scheduler, if running, and performs a final flush.
func (c *CheckpointService) Stop(ctx context.Context) CheckpointResult {
	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.mu.Unlock()

	if wasRunning {
		close(c.stopChan)
		<-c.doneChan
		c.logger.Info().Msg("Checkpoint scheduler stopped")
	}

	return c.RunOnce(ctx)
}

func (c *CheckpointService) runLoop() {
	defer close(c.doneChan)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunOnce(context.Background())
		case <-c.stopChan:
			return
		}
	}
}

// CheckpointResult contains the result of a flush.
type CheckpointResult struct {
	// Products is the number of products written.
	Products int

	// Skipped is set when another process held the checkpoint lock.
	Skipped bool

	// Duration is how long the run took.
	Duration time.Duration

	// Err is the failure, if any.
	Err error
}

// RunOnce flushes the catalog. It can be called manually or by the scheduler.
func (c *CheckpointService) RunOnce(ctx context.Context) CheckpointResult {
	start := time.Now()
	result := CheckpointResult{}

	lockKey := lock.Keys.CatalogCheckpoint()
	acquired, err := c.locker.Acquire(ctx, lockKey, c.config.LockTTL)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to acquire checkpoint lock")
		return c.finish(start, result, fmt.Errorf("failed to acquire checkpoint lock: %w", err))
	}
	if !acquired {
		c.logger.Debug().Msg("Checkpoint lock held by another process, skipping run")
		result.Skipped = true
		return c.finish(start, result, nil)
	}
	defer func() {
		if _, err := c.locker.Release(ctx, lockKey); err != nil {
			c.logger.Error().Err(err).Msg("Failed to release checkpoint lock")
		}
	}()

	snapshot := c.store.Snapshot()
	result.Products = len(snapshot)

	if err := c.products.ReplaceAll(ctx, snapshot); err != nil {
		return c.finish(start, result, fmt.Errorf("failed to write products: %w", err))
	}

	if c.config.CSVPath != "" {
		if err := report.WriteFile(c.config.CSVPath, snapshot); err != nil {
			return c.finish(start, result, fmt.Errorf("failed to export %s: %w", c.config.CSVPath, err))
		}
	}

	return c.finish(start, result, nil)
}

func (c *CheckpointService) finish(start time.Time, result CheckpointResult, err error) CheckpointResult {
	result.Duration = time.Since(start)
	result.Err = err

	switch {
	case err != nil:
		c.metrics.Checkpoint("error", result.Duration)
		c.logger.Error().Err(err).Msg("Checkpoint failed")
	case result.Skipped:
		c.metrics.Checkpoint("skipped", result.Duration)
	default:
		c.metrics.Checkpoint("ok", result.Duration)
		c.logger.Info().
			Int("products", result.Products).
			Dur("duration", result.Duration).
			Msg("Checkpoint completed")
	}
	return result
}
