package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photosync/internal/catalog"
	"photosync/internal/config"
	"photosync/internal/database"
	"photosync/internal/encryption"
	"photosync/internal/testutil"
)

type testEnv struct {
	cfg     *config.Config
	catalog *catalog.MemoryCatalog
	lib     string
	stderr  *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("test-device", base)
	cfg.Catalog.Type = "memory"
	cfg.Library.Root = filepath.Join(base, "library")
	return &testEnv{
		cfg:     cfg,
		catalog: catalog.NewMemoryCatalog(),
		lib:     cfg.Library.Root,
		stderr:  &bytes.Buffer{},
	}
}

func (e *testEnv) writeFile(t *testing.T, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(e.lib, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	return path
}

func (e *testEnv) open(t *testing.T, op *Operation, opts Options) *PhotoSyncApp {
	t.Helper()
	opts.Catalog = e.catalog
	opts.Stderr = e.stderr
	opts.Clock = testutil.FixedClock()
	a, err := NewPhotoSyncApp(e.cfg, op, opts)
	if err != nil {
		t.Fatalf("NewPhotoSyncApp() error = %v", err)
	}
	return a
}

func (e *testEnv) runs(t *testing.T) []string {
	t.Helper()
	h, err := database.NewHistoryFromConfig(e.cfg.Database, e.cfg.DeviceID)
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	defer h.Close()

	runs, err := h.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var out []string
	for _, r := range runs {
		if !r.FinishedAt.Valid {
			t.Errorf("run %d not finished", r.ID)
		}
		out = append(out, r.Operation+":"+r.Status)
	}
	return out
}

func TestPhotoSyncApp_SyncDirectories(t *testing.T) {
	e := newTestEnv(t)
	e.writeFile(t, "2024 Trip/a.png", testutil.PNG(t, 1))
	e.writeFile(t, "2024 Trip/b.png", testutil.PNG(t, 2))
	e.writeFile(t, "2024 Trip/sidecar.xmp", []byte("<xmp/>"))
	dir := filepath.Join(e.lib, "2024 Trip")

	a := e.open(t, NewOperation("SyncDirectories", dir), Options{})
	reports, err := a.SyncDirectories(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("SyncDirectories() error = %v", err)
	}
	if len(reports) != 1 || len(reports[0].Uploaded) != 2 {
		t.Fatalf("reports = %+v, want one report with 2 uploads", reports)
	}

	results, err := a.GetRunResults(a.op.ID)
	if err != nil {
		t.Fatalf("GetRunResults() error = %v", err)
	}
	if len(results) != 1 || results[0].Album != "2024 Trip" || results[0].Uploaded != 2 {
		t.Errorf("results = %+v, want 2024 Trip with 2 uploads", results)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := e.runs(t); len(got) != 1 || got[0] != "SyncDirectories:success" {
		t.Errorf("runs = %v, want one successful sync", got)
	}
	if got := e.catalog.AlbumNames(); len(got) != 1 || got[0] != "2024 Trip" {
		t.Errorf("albums = %v, want [2024 Trip]", got)
	}
}

func TestPhotoSyncApp_SyncDirectories_RejectsFile(t *testing.T) {
	e := newTestEnv(t)
	file := e.writeFile(t, "2024/a.png", testutil.PNG(t, 1))

	a := e.open(t, NewOperation("SyncDirectories", file), Options{})
	if _, err := a.SyncDirectories(context.Background(), []string{file}); err == nil {
		t.Error("SyncDirectories() expected error for a file")
	}
	if a.op.Persisted() {
		t.Error("run persisted for a rejected path")
	}
	a.Close()

	if got := e.runs(t); len(got) != 0 {
		t.Errorf("runs = %v, want none", got)
	}
}

func TestPhotoSyncApp_FailedRunIsRecorded(t *testing.T) {
	e := newTestEnv(t)
	path := e.writeFile(t, "2024/a.png", testutil.PNG(t, 1))
	e.catalog.FailUpload(path, errors.New("catalog unavailable"))
	dir := filepath.Join(e.lib, "2024")

	a := e.open(t, NewOperation("SyncDirectories", dir), Options{})
	if _, err := a.SyncDirectories(context.Background(), []string{dir}); err == nil {
		t.Fatal("SyncDirectories() expected error")
	}
	a.Close()

	if got := e.runs(t); len(got) != 1 || got[0] != "SyncDirectories:error" {
		t.Errorf("runs = %v, want one failed sync", got)
	}
}

func TestPhotoSyncApp_UploadDirectory(t *testing.T) {
	e := newTestEnv(t)
	albumID := e.catalog.SeedAlbum("2024")
	e.catalog.SeedAsset("remote-only", albumID)
	e.writeFile(t, "2024/a.png", testutil.PNG(t, 1))

	a := e.open(t, NewOperation("UploadDirectory"), Options{})
	defer a.Close()

	report, err := a.UploadDirectory(context.Background(), filepath.Join(e.lib, "2024"))
	if err != nil {
		t.Fatalf("UploadDirectory() error = %v", err)
	}
	if len(report.Uploaded) != 1 || len(report.Deleted) != 0 {
		t.Errorf("report = %+v, want one upload and no deletions", report)
	}
}

func TestPhotoSyncApp_Sweep(t *testing.T) {
	e := newTestEnv(t)
	e.writeFile(t, "2023/a.png", testutil.PNG(t, 1))
	e.writeFile(t, "2024/b.png", testutil.PNG(t, 2))
	e.writeFile(t, "scans/c.png", testutil.PNG(t, 3))
	e.catalog.SeedAsset("orphan")

	a := e.open(t, NewOperation("Sweep"), Options{})
	report, err := a.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(report.Purged) != 1 || len(report.Directories) != 2 {
		t.Errorf("report = %+v, want 1 purged and 2 directories", report)
	}

	results, err := a.GetRunResults(a.op.ID)
	if err != nil {
		t.Fatalf("GetRunResults() error = %v", err)
	}
	if len(results) != 2 || results[0].Album != "2023" || results[1].Album != "2024" {
		t.Errorf("results = %+v, want 2023 then 2024", results)
	}
	a.Close()
}

func TestPhotoSyncApp_SweepWithoutRoot(t *testing.T) {
	e := newTestEnv(t)
	e.cfg.Library.Root = ""

	a := e.open(t, NewOperation("Sweep"), Options{})
	defer a.Close()

	if _, err := a.Sweep(context.Background(), ""); err == nil {
		t.Error("Sweep() expected error without a library root")
	}
}

func TestPhotoSyncApp_DryRun(t *testing.T) {
	e := newTestEnv(t)
	e.writeFile(t, "2024/a.png", testutil.PNG(t, 1))
	e.catalog.SeedAsset("orphan")

	a := e.open(t, NewOperation("Sweep"), Options{DryRun: true})
	report, err := a.Sweep(context.Background(), e.lib)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	a.Close()

	if len(report.Purged) != 1 || len(report.Directories[0].Uploaded) != 1 {
		t.Errorf("report = %+v, want the would-be changes", report)
	}
	if n := e.catalog.Calls().Mutations(); n != 0 {
		t.Errorf("dry run made %d mutating calls", n)
	}
}

func TestPhotoSyncApp_MoveAsset(t *testing.T) {
	e := newTestEnv(t)
	asset := e.catalog.SeedAsset("sum", e.catalog.SeedAlbum("2023"))

	a := e.open(t, NewOperation("MoveAsset", asset, "2024"), Options{})
	if err := a.MoveAsset(context.Background(), asset, "2024"); err != nil {
		t.Fatalf("MoveAsset() error = %v", err)
	}
	a.Close()

	info, err := e.catalog.AssetInfo(context.Background(), asset)
	if err != nil {
		t.Fatalf("AssetInfo() error = %v", err)
	}
	if len(info.Albums) != 1 || info.Albums[0].Name != "2024" {
		t.Errorf("asset albums = %+v, want only 2024", info.Albums)
	}
}

func TestPhotoSyncApp_DeleteAlbum(t *testing.T) {
	e := newTestEnv(t)
	album := e.catalog.SeedAlbum("2023")
	asset := e.catalog.SeedAsset("sum", album)

	a := e.open(t, NewOperation("DeleteAlbum", album), Options{})
	got, err := a.DeleteAlbum(context.Background(), album)
	if err != nil {
		t.Fatalf("DeleteAlbum() error = %v", err)
	}
	a.Close()

	if got.Name != "2023" {
		t.Errorf("DeleteAlbum() name = %q, want 2023", got.Name)
	}
	if names := e.catalog.AlbumNames(); len(names) != 0 {
		t.Errorf("albums = %v, want none", names)
	}
	if _, err := e.catalog.AssetInfo(context.Background(), asset); err != nil {
		t.Errorf("AssetInfo() error = %v, want asset kept", err)
	}
}

func TestPhotoSyncApp_ReadOnlyCommandsSkipCatalog(t *testing.T) {
	e := newTestEnv(t)
	e.cfg.Catalog.Type = "immich"
	e.cfg.Catalog.APIKey = ""
	e.cfg.Catalog.APIKeyFile = filepath.Join(t.TempDir(), "missing.age")

	a, err := NewPhotoSyncApp(e.cfg, NewOperation("GetHistory"), Options{Stderr: e.stderr})
	if err != nil {
		t.Fatalf("NewPhotoSyncApp() error = %v", err)
	}
	defer a.Close()

	runs, err := a.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %v, want none", runs)
	}

	if _, err := a.Purge(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Purge() error = %v, want ErrNoAPIKey", err)
	}
}

func TestPhotoSyncApp_APIKey(t *testing.T) {
	sealed := func(t *testing.T) *encryption.MemoryKeyStore {
		s := encryption.NewMemoryKeyStore()
		if err := s.Seal("sealed-key", "pw"); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		return s
	}

	tests := []struct {
		name       string
		catalog    string
		configKey  string
		store      func(t *testing.T) *encryption.MemoryKeyStore
		passphrase string
		want       string
		wantErr    error
		wantOpens  int
	}{
		{
			name:      "config key wins",
			catalog:   "immich",
			configKey: "config-key",
			store:     sealed,
			want:      "config-key",
		},
		{
			name:       "sealed key",
			catalog:    "immich",
			store:      sealed,
			passphrase: "pw",
			want:       "sealed-key",
			wantOpens:  1,
		},
		{
			name:       "wrong passphrase",
			catalog:    "immich",
			store:      sealed,
			passphrase: "nope",
			wantErr:    encryption.ErrWrongPassphrase,
			wantOpens:  1,
		},
		{
			name:    "no key anywhere",
			catalog: "immich",
			store:   func(t *testing.T) *encryption.MemoryKeyStore { return encryption.NewMemoryKeyStore() },
			wantErr: ErrNoAPIKey,
		},
		{
			name:    "memory catalog needs no key",
			catalog: "memory",
			store:   func(t *testing.T) *encryption.MemoryKeyStore { return encryption.NewMemoryKeyStore() },
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.cfg.Catalog.Type = tt.catalog
			e.cfg.Catalog.APIKey = tt.configKey
			store := tt.store(t)

			a, err := NewPhotoSyncApp(e.cfg, NewOperation("Test"), Options{
				Stderr:     e.stderr,
				KeyStore:   store,
				Passphrase: func() (string, error) { return tt.passphrase, nil },
			})
			if err != nil {
				t.Fatalf("NewPhotoSyncApp() error = %v", err)
			}
			defer a.Close()

			got, err := a.apiKey()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("apiKey() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("apiKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("apiKey() = %q, want %q", got, tt.want)
			}
			if store.Opens() != tt.wantOpens {
				t.Errorf("key store opened %d times, want %d", store.Opens(), tt.wantOpens)
			}
		})
	}
}

func TestPhotoSyncApp_Logging(t *testing.T) {
	e := newTestEnv(t)
	e.writeFile(t, "2024/a.png", testutil.PNG(t, 1))

	a := e.open(t, NewOperation("SyncDirectories"), Options{Verbose: true})
	if _, err := a.SyncDirectories(context.Background(), []string{filepath.Join(e.lib, "2024")}); err != nil {
		t.Fatalf("SyncDirectories() error = %v", err)
	}
	a.Close()

	data, err := os.ReadFile(filepath.Join(e.cfg.LogDir, "photosync.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, "20240619T120000Z\tdirectory synced") {
		t.Errorf("log file missing run line: %q", log)
	}
	if !strings.Contains(log, "\tDEBUG\t") {
		t.Error("verbose run wrote no debug lines")
	}
	if e.stderr.String() != log {
		t.Error("stderr does not mirror the log file")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photosync.toml")
	cfg := config.NewConfig("device-1", dir)
	if err := config.Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	t.Setenv(config.EnvCatalogURL, "https://photos.example.com")
	t.Setenv(config.EnvCatalogAPIKey, "env-key")

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got.Catalog.URL != "https://photos.example.com" || got.Catalog.APIKey != "env-key" {
		t.Errorf("catalog = %+v, want the environment overrides", got.Catalog)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadConfig() expected error for missing file")
	}
}
