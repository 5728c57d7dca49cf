package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"

	"photosync/internal/catalog"
	"photosync/internal/checksum"
	"photosync/internal/config"
	"photosync/internal/database"
	"photosync/internal/encryption"
	"photosync/internal/fs"
	"photosync/internal/photosync"
)

// ErrNoAPIKey is returned when neither the config, the environment nor the
// key file provides an API key.
var ErrNoAPIKey = errors.New("no catalog API key configured")

// Options adjusts how the app is wired.
type Options struct {
	// DryRun reports what would change without mutating the catalog.
	DryRun bool

	// Verbose lowers the log level to debug.
	Verbose bool

	// Stderr receives a copy of every log line. Nil means os.Stderr.
	Stderr io.Writer

	// KeyStore holds the sealed API key. Nil means the age key file at
	// catalog.api_key_file.
	KeyStore photosync.KeyStore

	// Passphrase unlocks the KeyStore. Nil means EnvOrPromptPassphrase.
	Passphrase PassphraseFunc

	// Catalog replaces the configured catalog.
	Catalog photosync.Catalog

	// Clock defaults to the real clock.
	Clock photosync.Clock
}

// PhotoSyncApp is the application layer between the CLI and the Reconciler.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and records mutating operations in the run
// history. The catalog is connected on first use so that read-only commands
// never ask for the API key.
type PhotoSyncApp struct {
	cfg        *config.Config
	opts       Options
	history    photosync.History
	fsmgr      photosync.FilesystemManager
	index      *checksum.Index
	logger     photosync.Logger
	clock      photosync.Clock
	pattern    *regexp.Regexp
	reconciler *photosync.Reconciler
	op         *Operation
	logFile    *os.File
}

// LoadConfig reads the config file, applies the environment overrides and
// validates the result.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// NewKeyStore returns the age key store configured for the catalog API key.
func NewKeyStore(cfg *config.Config) (*encryption.AgeKeyStore, error) {
	if cfg.Catalog.APIKeyFile == "" {
		return nil, fmt.Errorf("catalog api_key_file is not configured")
	}
	return encryption.NewAgeKeyStore(cfg.Catalog.APIKeyFile), nil
}

// NewPhotoSyncApp creates a wired PhotoSyncApp from the given config.
// op identifies the CLI command being run. The caller must call Close when done.
func NewPhotoSyncApp(cfg *config.Config, op *Operation, opts Options) (*PhotoSyncApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var pattern *regexp.Regexp
	if cfg.Library.AlbumPattern != "" {
		pattern = regexp.MustCompile(cfg.Library.AlbumPattern)
	}

	clock := opts.Clock
	if clock == nil {
		clock = photosync.RealClock{}
	}

	runID := clock.Now().UTC().Format("20060102T150405Z")
	sl, logFile, err := newLogger(cfg.LogDir, runID, level, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	history, err := database.NewHistoryFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Library.Ignore)

	return &PhotoSyncApp{
		cfg:     cfg,
		opts:    opts,
		history: history,
		fsmgr:   fsmgr,
		index:   checksum.NewIndex(fsmgr, logger),
		logger:  logger,
		clock:   clock,
		pattern: pattern,
		op:      op,
		logFile: logFile,
	}, nil
}

// service returns the Reconciler, connecting to the catalog on first use.
func (a *PhotoSyncApp) service() (*photosync.Reconciler, error) {
	if a.reconciler != nil {
		return a.reconciler, nil
	}

	cat := a.opts.Catalog
	if cat == nil {
		apiKey, err := a.apiKey()
		if err != nil {
			return nil, err
		}
		cat, err = catalog.NewCatalogFromConfig(a.cfg.Catalog, a.cfg.DeviceID, apiKey, a.logger)
		if err != nil {
			return nil, fmt.Errorf("creating catalog: %w", err)
		}
	}

	a.reconciler = photosync.NewReconciler(cat, a.index, a.fsmgr, a.logger, a.clock, photosync.Options{
		UploadWorkers: a.cfg.Library.UploadWorkers,
		DryRun:        a.opts.DryRun,
		AlbumPattern:  a.pattern,
	})
	return a.reconciler, nil
}

// apiKey resolves the catalog API key. A key in the config (or
// IMMICH_API_KEY) wins; otherwise the sealed key file is opened.
func (a *PhotoSyncApp) apiKey() (string, error) {
	if a.cfg.Catalog.Type != "immich" && a.cfg.Catalog.Type != "" {
		return "", nil
	}
	if a.cfg.Catalog.APIKey != "" {
		return a.cfg.Catalog.APIKey, nil
	}

	store := a.opts.KeyStore
	if store == nil {
		s, err := NewKeyStore(a.cfg)
		if err != nil {
			return "", fmt.Errorf("%w: set %s or run `photosync config set-key`", ErrNoAPIKey, config.EnvCatalogAPIKey)
		}
		store = s
	}
	if !store.IsConfigured() {
		return "", fmt.Errorf("%w: set %s or run `photosync config set-key`", ErrNoAPIKey, config.EnvCatalogAPIKey)
	}

	passphrase := a.opts.Passphrase
	if passphrase == nil {
		passphrase = EnvOrPromptPassphrase
	}
	p, err := passphrase()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	key, err := store.Open(p)
	if err != nil {
		return "", fmt.Errorf("unlocking API key: %w", err)
	}
	return key, nil
}

// persistOperation saves the operation to the history database, giving it an
// auto-increment ID. This should only be called for mutating commands.
func (a *PhotoSyncApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	run, err := a.history.CreateRun(a.op.Name, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.op.ID = run.ID
	return nil
}

func (a *PhotoSyncApp) record(report *photosync.DirectoryReport) error {
	if report == nil {
		return nil
	}
	if err := a.history.RecordDirectory(a.op.ID, report); err != nil {
		return fmt.Errorf("recording result for %s: %w", report.Directory, err)
	}
	return nil
}

func (a *PhotoSyncApp) resolveDir(rawPath string) (*photosync.Path, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", p.String())
	}
	return p, nil
}

// SyncDirectories reconciles each directory against its album, in the given
// order. The first fatal error stops the remaining directories.
func (a *PhotoSyncApp) SyncDirectories(ctx context.Context, rawPaths []string) ([]*photosync.DirectoryReport, error) {
	reports, err := a.syncDirectories(ctx, rawPaths)
	return reports, a.op.Fail(err)
}

func (a *PhotoSyncApp) syncDirectories(ctx context.Context, rawPaths []string) ([]*photosync.DirectoryReport, error) {
	dirs := make([]*photosync.Path, 0, len(rawPaths))
	for _, raw := range rawPaths {
		p, err := a.resolveDir(raw)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, p)
	}

	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	var reports []*photosync.DirectoryReport
	for _, dir := range dirs {
		report, err := svc.SyncDirectory(ctx, dir)
		if recErr := a.record(report); recErr != nil && err == nil {
			err = recErr
		}
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// UploadDirectory uploads the files of a directory missing from its album
// without deleting anything.
func (a *PhotoSyncApp) UploadDirectory(ctx context.Context, rawPath string) (*photosync.DirectoryReport, error) {
	report, err := a.uploadDirectory(ctx, rawPath)
	return report, a.op.Fail(err)
}

func (a *PhotoSyncApp) uploadDirectory(ctx context.Context, rawPath string) (*photosync.DirectoryReport, error) {
	dir, err := a.resolveDir(rawPath)
	if err != nil {
		return nil, err
	}
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	report, err := svc.UploadDirectory(ctx, dir)
	if recErr := a.record(report); recErr != nil && err == nil {
		err = recErr
	}
	return report, err
}

// Purge deletes every catalog asset that belongs to no album.
func (a *PhotoSyncApp) Purge(ctx context.Context) ([]string, error) {
	ids, err := a.purge(ctx)
	return ids, a.op.Fail(err)
}

func (a *PhotoSyncApp) purge(ctx context.Context) ([]string, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return svc.PurgeUnaffiliated(ctx)
}

// Sweep purges unaffiliated assets and then reconciles every album directory
// under rawRoot. An empty rawRoot means the configured library root.
func (a *PhotoSyncApp) Sweep(ctx context.Context, rawRoot string) (*photosync.SweepReport, error) {
	report, err := a.sweep(ctx, rawRoot)
	return report, a.op.Fail(err)
}

func (a *PhotoSyncApp) sweep(ctx context.Context, rawRoot string) (*photosync.SweepReport, error) {
	if rawRoot == "" {
		rawRoot = a.cfg.Library.Root
	}
	if rawRoot == "" {
		return nil, fmt.Errorf("no library root: pass a directory or set [library] root")
	}
	root, err := a.resolveDir(rawRoot)
	if err != nil {
		return nil, err
	}
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	report, err := svc.Sweep(ctx, root)
	if report != nil {
		for _, d := range report.Directories {
			if recErr := a.record(d); recErr != nil && err == nil {
				err = recErr
			}
		}
	}
	return report, err
}

// MoveAsset moves an asset into the album named albumName.
func (a *PhotoSyncApp) MoveAsset(ctx context.Context, assetID, albumName string) error {
	return a.op.Fail(a.moveAsset(ctx, assetID, albumName))
}

func (a *PhotoSyncApp) moveAsset(ctx context.Context, assetID, albumName string) error {
	if a.opts.DryRun {
		return fmt.Errorf("move does not support dry run")
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	if err := a.persistOperation(); err != nil {
		return err
	}
	return svc.MoveAsset(ctx, assetID, albumName)
}

// DeleteAlbum removes an album from the catalog, leaving its assets in place.
func (a *PhotoSyncApp) DeleteAlbum(ctx context.Context, albumID string) (*photosync.Album, error) {
	album, err := a.deleteAlbum(ctx, albumID)
	return album, a.op.Fail(err)
}

func (a *PhotoSyncApp) deleteAlbum(ctx context.Context, albumID string) (*photosync.Album, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return svc.DeleteAlbum(ctx, albumID)
}

// GetHistory returns the most recent runs, newest first.
func (a *PhotoSyncApp) GetHistory(limit int) ([]*photosync.Run, error) {
	return a.history.ListRuns(limit)
}

// GetRunResults returns the per-directory results of a run.
func (a *PhotoSyncApp) GetRunResults(runID int64) ([]*photosync.DirectoryResult, error) {
	return a.history.ListDirectoryResults(runID)
}

// Close finishes the run record of a persisted operation and closes all
// resources.
func (a *PhotoSyncApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.history.FinishRun(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing run: %w", err)
		}
	}

	if err := a.history.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing history database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
