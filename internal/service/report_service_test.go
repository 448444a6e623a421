package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/stockwarden/internal/catalog"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/lock"
	"github.com/prn-tf/stockwarden/internal/pkg/crypto"
	"github.com/prn-tf/stockwarden/internal/report"
	"github.com/prn-tf/stockwarden/internal/storage"
)

type reportFixture struct {
	svc     *ReportService
	store   *catalog.Store
	archive *storage.FilesystemArchive
	box     *outbox
	locker  *lock.MemoryLocker
	workDir string
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()

	root := t.TempDir()
	archive, err := storage.NewFilesystemArchive(filepath.Join(root, "archive"), "", zerolog.Nop())
	require.NoError(t, err)

	store := catalog.NewStore()
	require.NoError(t, store.Replace(SeedProducts(checkpointDay)))

	f := &reportFixture{
		store:   store,
		archive: archive,
		box:     &outbox{},
		locker:  lock.NewMemoryLocker(),
		workDir: filepath.Join(root, "work"),
	}
	f.svc = NewReportService(store, archive, f.box, f.locker, zerolog.Nop(), ReportConfig{
		WorkDir:          f.workDir,
		DefaultRecipient: "inventory.manager@corp.com",
	})
	f.svc.now = func() time.Time { return checkpointDay.Add(15 * time.Hour) }
	return f
}

func TestReportService_SendArchivesAndMails(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	out, err := f.svc.Send(ctx, SendReportInput{Recipient: "boss@corp.com"})
	require.NoError(t, err)
	require.NoError(t, out.DeliveryErr)
	assert.Equal(t, "boss@corp.com", out.Recipient)
	assert.Equal(t, "inventory-report-2026-03-14.csv", out.FileName)
	assert.Equal(t, 3, out.Products)

	assert.True(t, strings.HasPrefix(out.Key, "2026/03/14/150000-"), out.Key)
	rc, err := f.archive.Open(ctx, out.Key)
	require.NoError(t, err)
	defer rc.Close()
	archived, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, crypto.ComputeSHA256(archived), out.SHA256)

	products, res, err := report.Decode(bytes.NewReader(archived), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Loaded)
	assert.Equal(t, f.store.Snapshot(), products)

	msgs := f.box.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "boss@corp.com", msgs[0].To)
	assert.Equal(t, "Inventory Report - 2026-03-14", msgs[0].Subject)
	assert.Equal(t, out.FileName, filepath.Base(msgs[0].AttachmentPath))

	// The work file is removed once the dispatch finishes.
	_, err = os.Stat(msgs[0].AttachmentPath)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReportService_SameDaySendsKeepSeparateArchives(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, SendReportInput{Recipient: "boss@corp.com"})
	require.NoError(t, err)
	second, err := f.svc.Send(ctx, SendReportInput{Recipient: "other@corp.com"})
	require.NoError(t, err)

	assert.Equal(t, first.FileName, second.FileName)
	assert.NotEqual(t, first.Key, second.Key)
	for _, key := range []string{first.Key, second.Key} {
		exists, err := f.archive.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, key)
	}
}

func TestReportService_DefaultRecipient(t *testing.T) {
	f := newReportFixture(t)

	out, err := f.svc.Send(context.Background(), SendReportInput{})
	require.NoError(t, err)
	assert.Equal(t, "inventory.manager@corp.com", out.Recipient)
}

func TestReportService_InvalidRecipient(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.Send(context.Background(), SendReportInput{Recipient: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, f.box.messages())
}

func TestReportService_DeliveryFailureKeepsArchive(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	f.box.fail(errors.New("relay refused"))

	out, err := f.svc.Send(ctx, SendReportInput{})
	require.NoError(t, err)
	require.ErrorIs(t, out.DeliveryErr, domain.ErrNotificationFailure)

	exists, err := f.archive.Exists(ctx, out.Key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReportService_ConcurrentDispatchRejected(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	other := f.locker.NewSharedMemoryLocker()
	ok, err := other.Acquire(ctx, lock.Keys.ReportDispatch("boss@corp.com"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Send(ctx, SendReportInput{Recipient: "boss@corp.com"})
	require.ErrorIs(t, err, ErrReportInProgress)

	_, err = f.svc.Send(ctx, SendReportInput{Recipient: "other@corp.com"})
	require.NoError(t, err)
}
