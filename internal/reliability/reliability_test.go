package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/trailstop/internal/database"
	"github.com/aristath/trailstop/internal/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]types.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Object
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(data)))})
		}
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newLedgerDB(t *testing.T, dir string) *database.DB {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func archiveEntries(t *testing.T, data []byte) []string {
	gz, err := gzip.NewReader(strings.NewReader(string(data)))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}
	return names
}

func TestCreateAndUploadBackup(t *testing.T) {
	dir := t.TempDir()
	db := newLedgerDB(t, dir)
	store := newFakeStore()

	bus := events.NewBus(zerolog.Nop())
	var backupEvents []*events.Event
	bus.Subscribe(events.LedgerBackupComplete, func(e *events.Event) { backupEvents = append(backupEvents, e) })

	service := NewR2BackupService(store, []Snapshotter{db}, dir, "trailstop/", zerolog.Nop())
	service.SetEventManager(events.NewManager(bus, zerolog.Nop()))
	service.now = func() time.Time { return time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC) }

	key, err := service.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trailstop/trailstop-backup-2026-04-05-060708.tar.gz", key)
	assert.Equal(t, []string{key}, store.keys())

	assert.ElementsMatch(t, []string{"ledger.db", metadataFilename}, archiveEntries(t, store.objects[key]))

	require.Len(t, backupEvents, 1)
	assert.Equal(t, key, backupEvents[0].Data["key"])
}

func TestCreateAndUploadBackup_UploadError(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.uploadErr = errors.New("bucket unavailable")

	service := NewR2BackupService(store, []Snapshotter{newLedgerDB(t, dir)}, dir, "", zerolog.Nop())

	_, err := service.CreateAndUploadBackup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestListBackups_SkipsForeignKeys(t *testing.T) {
	store := newFakeStore()
	store.objects["p/trailstop-backup-2026-01-02-000000.tar.gz"] = []byte("a")
	store.objects["p/trailstop-backup-2026-01-03-000000.tar.gz"] = []byte("bb")
	store.objects["p/trailstop-backup-garbage.tar.gz"] = []byte("c")
	store.objects["other/trailstop-backup-2026-01-04-000000.tar.gz"] = []byte("d")

	service := NewR2BackupService(store, nil, t.TempDir(), "p/", zerolog.Nop())

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "p/trailstop-backup-2026-01-03-000000.tar.gz", backups[0].Key)
	assert.Equal(t, int64(2), backups[0].SizeBytes)
}

func TestRotateOldBackups(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	for _, day := range []int{1, 2, 3, 4, 28, 29} {
		ts := time.Date(2026, 6, day, 0, 0, 0, 0, time.UTC)
		store.objects[archivePrefix+ts.Format(archiveTimestamp)+archiveSuffix] = []byte("x")
	}

	service := NewR2BackupService(store, nil, t.TempDir(), "", zerolog.Nop())
	service.now = func() time.Time { return now }

	deleted, err := service.RotateOldBackups(context.Background(), 7)
	require.NoError(t, err)
	// Newest three kept (29, 28, 4); 3, 2 and 1 are past the cutoff
	assert.Equal(t, 3, deleted)
	assert.Len(t, store.keys(), 3)

	deleted, err = service.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMaintenanceJob_Run(t *testing.T) {
	dir := t.TempDir()
	db := newLedgerDB(t, dir)

	job := NewMaintenanceJob(map[string]*database.DB{"ledger": db}, dir, zerolog.Nop())
	assert.Equal(t, "maintenance", job.Name())
	assert.NoError(t, job.Run())
}

func TestBackupJob_Run(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	service := NewR2BackupService(store, []Snapshotter{newLedgerDB(t, dir)}, dir, "", zerolog.Nop())

	job := NewBackupJob(service, 30, zerolog.Nop())
	assert.Equal(t, "ledger_backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.keys(), 1)
}

func TestNewR2Client_RequiresBucket(t *testing.T) {
	_, err := NewR2Client(context.Background(), R2Config{}, zerolog.Nop())
	assert.Error(t, err)
}
