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

	"photosync/internal/app"
	"photosync/internal/config"
	"photosync/internal/photosync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	dryRun  bool
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file at the default location.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := app.LoadConfig(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a PhotoSyncApp. The caller must defer app.Close().
func newApp(operation string, args ...string) (*app.PhotoSyncApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewPhotoSyncApp(cfg, app.NewOperation(operation, args...), app.Options{
		DryRun:  dryRun,
		Verbose: verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "photosync",
	Short:        "Mirror local photo directories into catalog albums",
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

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		fmt.Printf("Catalog:   %s\n", cfg.Catalog.URL)
		fmt.Println("Run `photosync config set-key` to store the API key.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		keyStatus := "not set"
		switch {
		case cfg.Catalog.APIKey != "":
			keyStatus = maskKey(cfg.Catalog.APIKey)
		case cfg.Catalog.APIKeyFile != "":
			if store, err := app.NewKeyStore(cfg); err == nil && store.IsConfigured() {
				keyStatus = "sealed in " + cfg.Catalog.APIKeyFile
			}
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Device ID:      %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Catalog:        %s (%s)\n", cfg.Catalog.URL, cfg.Catalog.Type)
		fmt.Printf("API Key:        %s\n", keyStatus)
		fmt.Printf("Retry:          every %s, max %d\n", cfg.Catalog.RetryDelay, cfg.Catalog.MaxRetries)
		fmt.Printf("Library Root:   %s\n", cfg.Library.Root)
		fmt.Printf("Album Pattern:  %s\n", cfg.Library.AlbumPattern)
		fmt.Printf("Upload Workers: %d\n", cfg.Library.UploadWorkers)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Seal the catalog API key with a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := app.NewKeyStore(cfg)
		if err != nil {
			return err
		}

		key, err := app.ReadSecret("API key: ")
		if err != nil {
			return err
		}
		passphrase, err := app.ReadSecret("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := app.ReadSecret("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return errors.New("passphrases do not match")
		}

		if err := store.Seal(key, passphrase); err != nil {
			return fmt.Errorf("sealing API key: %w", err)
		}
		fmt.Printf("API key sealed in %s\n", store.Path())
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync DIR...",
	Short: "Reconcile directories with their albums",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SyncDirectories", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.SyncDirectories(cmd.Context(), args)
		for _, r := range reports {
			printDirectoryReport(r)
		}
		return err
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload DIR",
	Short: "Upload new files of a directory into its album",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("UploadDirectory", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.UploadDirectory(cmd.Context(), args[0])
		if report != nil {
			printDirectoryReport(report)
		}
		return err
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete assets that belong to no album",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Purge")
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s %d asset(s) without album\n", verb("Deleted", "Would delete"), len(ids))
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep [ROOT]",
	Short: "Purge, then reconcile every album directory under the library root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := ""
		if len(args) > 0 {
			root = args[0]
		}

		a, err := newApp("Sweep", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sweep(cmd.Context(), root)
		if report != nil {
			fmt.Printf("%s %d asset(s) without album\n", verb("Deleted", "Would delete"), len(report.Purged))
			for _, r := range report.Directories {
				printDirectoryReport(r)
			}
		}
		return err
	},
}

var moveCmd = &cobra.Command{
	Use:   "move ASSET ALBUM",
	Short: "Move an asset into another album",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MoveAsset", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MoveAsset(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Moved %s to %s\n", args[0], args[1])
		return nil
	},
}

var albumCmd = &cobra.Command{
	Use:   "album",
	Short: "Manage catalog albums",
}

var albumDeleteCmd = &cobra.Command{
	Use:   "delete ALBUM_ID",
	Short: "Delete an album, keeping its assets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteAlbum", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		album, err := a.DeleteAlbum(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s album %s (%d asset(s) kept)\n", verb("Deleted", "Would delete"), album.Name, len(album.Assets))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt.Valid {
				d := run.FinishedAt.Time.Sub(run.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-16s  %s  %-8s  %-10s  %s\n",
				run.ID,
				run.Operation,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				duration,
				run.Parameters,
			)
		}
		return nil
	},
}

func printDirectoryReport(r *photosync.DirectoryReport) {
	prefix := ""
	if r.DryRun {
		prefix = "[dry run] "
	}
	fmt.Printf("%s%s: %d uploaded, %d attached, %d deleted, %d skipped, %d failed, %d unchanged\n",
		prefix, r.Album,
		len(r.Uploaded), len(r.Attached), len(r.Deleted), len(r.Skipped), len(r.Failed), r.Unchanged)
	if r.DryRun || verbose {
		for _, p := range r.Uploaded {
			fmt.Printf("  + %s\n", p)
		}
		for _, id := range r.Deleted {
			fmt.Printf("  - %s\n", id)
		}
	}
	for _, p := range r.Skipped {
		fmt.Printf("  skipped (too large): %s\n", p)
	}
	for _, f := range r.Failed {
		fmt.Printf("  failed: %s\n", f.Error())
	}
}

func verb(done, dry string) string {
	if dryRun {
		return dry
	}
	return done
}

// maskKey keeps the last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetKeyCmd)

	// album subcommands
	albumCmd.AddCommand(albumDeleteCmd)

	for _, cmd := range []*cobra.Command{syncCmd, uploadCmd, purgeCmd, sweepCmd, albumDeleteCmd} {
		cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would change without changing the catalog")
	}

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(albumCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
