package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/config"
	"github.com/studyhub/drive/internal/database"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testStorageLimit = 1000

type testEnv struct {
	db    *gorm.DB
	store *storage.MemoryStore
	fetch *stubFetcher
	svc   *Container
}

// stubFetcher serves canned responses keyed by URL and counts calls.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*FetchResult
	calls     int
}

func (f *stubFetcher) Fetch(_ context.Context, u *url.URL) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	res, ok := f.responses[u.String()]
	if !ok {
		return nil, errInvalidInput("remote server returned status 404")
	}
	out := *res
	return &out, nil
}

type stubThumbnailer struct{}

func (stubThumbnailer) Generate(_ context.Context, _ []byte, mimeType string) ([]byte, error) {
	if mimeType != "image/png" {
		return nil, nil
	}
	return []byte("thumbnail"), nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.SetOutput(io.Discard)

	db := setupTestDB(t)
	store := storage.NewMemoryStore(nil)
	fetch := &stubFetcher{responses: map[string]*FetchResult{}}
	svc := NewContainer(Dependencies{
		DB:          db,
		Store:       store,
		Thumbnailer: stubThumbnailer{},
		Fetcher:     fetch,
		Drive: config.DriveConfig{
			DefaultStorageLimit: testStorageLimit,
			MaxFileSize:         10_000,
			MaxFolderDepth:      8,
			MaxTags:             5,
		},
	})
	return &testEnv{db: db, store: store, fetch: fetch, svc: svc}
}

// content returns n bytes unique to seed.
func content(seed string, n int) []byte {
	data := make([]byte, n)
	prefix := []byte(seed + ":")
	for i := range data {
		if i < len(prefix) {
			data[i] = prefix[i]
		} else {
			data[i] = 'x'
		}
	}
	return data
}

func (e *testEnv) upload(t *testing.T, userID uuid.UUID, folderID *uuid.UUID, name string, data []byte) *models.File {
	t.Helper()
	file, err := e.svc.Files.Upload(context.Background(), userID, UploadInput{
		FolderID:     folderID,
		Data:         data,
		OriginalName: name,
		MimeType:     "text/plain",
	})
	if err != nil {
		t.Fatalf("upload %s failed: %v", name, err)
	}
	return file
}

func (e *testEnv) folder(t *testing.T, userID uuid.UUID, parentID *uuid.UUID, name string) *models.Folder {
	t.Helper()
	folder, err := e.svc.Folders.Create(context.Background(), userID, CreateFolderInput{ParentID: parentID, Name: name})
	if err != nil {
		t.Fatalf("create folder %s failed: %v", name, err)
	}
	return folder
}

func (e *testEnv) drive(t *testing.T, userID uuid.UUID) *models.Drive {
	t.Helper()
	var drive models.Drive
	if err := e.db.First(&drive, "owner_id = ?", userID).Error; err != nil {
		t.Fatalf("failed loading drive: %v", err)
	}
	return &drive
}

// billedTotal sums BilledSize over every file row of the user's drive.
func (e *testEnv) billedTotal(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	drive := e.drive(t, userID)
	var total int64
	if err := e.db.Model(&models.File{}).Where("drive_id = ?", drive.ID).
		Select("COALESCE(SUM(billed_size), 0)").Scan(&total).Error; err != nil {
		t.Fatalf("failed summing billed size: %v", err)
	}
	return total
}

func (e *testEnv) assertLedger(t *testing.T, userID uuid.UUID, want int64) {
	t.Helper()
	drive := e.drive(t, userID)
	if drive.StorageUsed != want {
		t.Fatalf("expected storage used %d, got %d", want, drive.StorageUsed)
	}
	if billed := e.billedTotal(t, userID); billed != want {
		t.Fatalf("expected billed total %d, got %d", want, billed)
	}
}

func (e *testEnv) setPolicy(t *testing.T, userID uuid.UUID, policy models.CopyPolicy, private bool) {
	t.Helper()
	if _, err := e.svc.Drives.Update(context.Background(), userID, UpdateDriveInput{
		IsPrivate:    &private,
		AllowCopying: &policy,
	}); err != nil {
		t.Fatalf("failed updating drive policy: %v", err)
	}
}

func expectKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
	var e *Error
	errors.As(err, &e)
	return e
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("failed counting rows: %v", err)
	}
	return n
}

func fileName(i int) string {
	return fmt.Sprintf("file-%02d.txt", i)
}
