// Package report converts catalog snapshots to and from the 7-field CSV
// layout used for checkpoints and emailed reports.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// Header is the first row of every exported file. Import always skips it.
var Header = []string{"id", "name", "category", "price", "quantity", "date", "supplier"}

const fieldCount = 7

// ImportResult counts the rows seen by Decode.
type ImportResult struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// Encode writes the header followed by one row per product.
func Encode(w io.Writer, products []domain.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, fieldCount)
	for _, p := range products {
		row[0] = p.ID
		row[1] = p.Name
		row[2] = p.Category
		row[3] = strconv.FormatFloat(p.Price, 'f', -1, 64)
		row[4] = strconv.Itoa(p.Quantity)
		row[5] = p.UpdatedAt.Format(domain.DateLayout)
		row[6] = p.Supplier
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write product %q: %w", p.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Decode reads products written by Encode. The first row is skipped. Rows
// that are short, unparsable, invalid or repeat an earlier id are skipped and
// counted; only an I/O failure returns an error.
func Decode(r io.Reader, logger zerolog.Logger) ([]domain.Product, ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		products []domain.Product
		result   ImportResult
		seen     = make(map[string]struct{})
		line     = 0
	)

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Skipped++
				logger.Debug().Int("line", line).Err(err).Msg("skipping malformed csv row")
				continue
			}
			return nil, result, fmt.Errorf("failed to read csv: %w", err)
		}
		if line == 1 {
			continue
		}

		p, err := parseRecord(record)
		if err == nil {
			if _, dup := seen[p.ID]; dup {
				err = fmt.Errorf("%w: repeated id %q", domain.ErrDuplicateKey, p.ID)
			}
		}
		if err != nil {
			result.Skipped++
			logger.Debug().Int("line", line).Err(err).Msg("skipping malformed csv row")
			continue
		}

		seen[p.ID] = struct{}{}
		products = append(products, p)
		result.Loaded++
	}

	logger.Info().Int("loaded", result.Loaded).Int("skipped", result.Skipped).Msg("csv import finished")
	return products, result, nil
}

func parseRecord(record []string) (domain.Product, error) {
	if len(record) < fieldCount {
		return domain.Product{}, fmt.Errorf("%w: expected %d fields, got %d", domain.ErrInvalidArgument, fieldCount, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	price, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: price: %v", domain.ErrInvalidArgument, err)
	}
	quantity, err := strconv.Atoi(record[4])
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: quantity: %v", domain.ErrInvalidArgument, err)
	}
	date, err := time.Parse(domain.DateLayout, record[5])
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: date: %v", domain.ErrInvalidArgument, err)
	}

	p := domain.Product{
		ID:        record[0],
		Name:      record[1],
		Category:  record[2],
		Price:     price,
		Quantity:  quantity,
		UpdatedAt: date,
		Supplier:  record[6],
	}
	return p, p.Validate()
}

// WriteFile encodes products to path, replacing it atomically.
func WriteFile(path string, products []domain.Product) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, products); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// ReadFile decodes the file at path.
func ReadFile(path string, logger zerolog.Logger) ([]domain.Product, ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImportResult{}, err
	}
	defer f.Close()
	return Decode(f, logger)
}
