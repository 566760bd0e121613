// Command loggerfsd mounts the loggerfs virtual filesystem: a directory
// of write-only files, one per configured log, that parse every line
// written to them against a named regex schema and insert matched rows
// into PostgreSQL or MySQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/achillean/loggerfs/internal/bootstrap"
	"github.com/achillean/loggerfs/internal/catalog"
	"github.com/achillean/loggerfs/internal/fsadapter"
	"github.com/achillean/loggerfs/internal/ingest"
	"github.com/achillean/loggerfs/internal/logutil"
	"github.com/achillean/loggerfs/internal/metrics"
	"github.com/achillean/loggerfs/internal/refresh"
)

var (
	flagConfigDir   string
	flagMetricsAddr string
	flagNoWatch     bool
	flagDev         bool
	flagAllowOther  bool
	flagReadOnly    bool
	flagFuseDebug   bool
)

var rootCmd = &cobra.Command{
	Use:   "loggerfsd <mountpoint>",
	Short: "mount the loggerfs write-only logging filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagConfigDir, "config-dir", "", "directory holding schemas.xml and logs.xml (searched ahead of the default locations)")
	rootCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9321)")
	rootCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "disable the config directory watcher; only /.refresh triggers a reload")
	rootCmd.Flags().BoolVar(&flagDev, "dev", false, "use human-readable development logging instead of JSON")
	rootCmd.Flags().BoolVar(&flagAllowOther, "allow-other", false, "forwarded to FUSE as -o allow_other")
	rootCmd.Flags().BoolVar(&flagReadOnly, "read-only", false, "forwarded to FUSE as -o ro (every write then fails EROFS at the kernel, never reaching ingestion)")
	rootCmd.Flags().BoolVar(&flagFuseDebug, "fuse-debug", false, "log every FUSE request/response")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Fatal("loggerfsd exited", zap.Error(err))
	}
}

func run(ctx context.Context, mountpoint string) error {
	log, err := logutil.New(flagDev)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	dirs := catalog.ConfigSearchPaths("/usr/local")
	if flagConfigDir != "" {
		dirs = append([]string{flagConfigDir}, dirs...)
	}

	var reg *metrics.Registry
	var metricsIngest ingest.Metrics = ingest.NoopMetrics
	var metricsRefresh refresh.Metrics = refresh.NoopMetrics
	if flagMetricsAddr != "" {
		reg = metrics.New()
		metricsIngest = reg
		metricsRefresh = reg
	}

	result, err := bootstrap.Run(ctx, log, bootstrap.Options{ConfigDirs: dirs, Metrics: metricsRefresh})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer result.Pool.CloseAll()

	if reg != nil {
		go func() {
			if err := metrics.Serve(ctx, flagMetricsAddr, reg.Gatherer()); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if !flagNoWatch {
		w, err := refresh.WatchConfigDirs(result.Refresher, dirs, log)
		if err != nil {
			log.Warn("config watcher disabled", zap.Error(err))
		} else {
			defer w.Close() //nolint:errcheck
		}
	}

	adapter := fsadapter.New(result.Refresher, result.Pool, metricsIngest, log)
	root := fsadapter.NewRoot(adapter)
	mountOpts := fuse.MountOptions{
		FsName:     "loggerfs",
		Name:       "loggerfs",
		AllowOther: flagAllowOther,
		Debug:      flagFuseDebug,
	}
	if flagReadOnly {
		mountOpts.Options = append(mountOpts.Options, "ro")
	}
	server, err := fsadapter.Mount(mountpoint, root, &fs.Options{MountOptions: mountOpts})
	if err != nil {
		return fmt.Errorf("mount %s: %w", mountpoint, err)
	}
	log.Info("mounted", zap.String("mountpoint", mountpoint))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("unmounting", zap.String("mountpoint", mountpoint))
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmount %s: %w", mountpoint, err)
	}
	server.Wait()
	return nil
}
