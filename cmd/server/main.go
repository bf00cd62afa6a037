package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"blockeditor/internal/logging"
	persistlog "blockeditor/internal/persistence/log"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/editor"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/settings"
	"blockeditor/internal/transport/observer"
	"blockeditor/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/editor.yaml", "editor settings path (defaults are used if missing)")
		addr       = flag.String("addr", "", "http listen address (default: server.addr from settings)")
		dataDir    = flag.String("data", "", "runtime data directory (default: server.data_dir from settings)")
		mapPath    = flag.String("map", "map.te3", "map file, relative to <data>/maps; created if missing")
		newSize    = flag.String("size", "16x4x16", "dimensions of a fresh map, WxHxL")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "resume from the newest snapshot of the map when it is newer than the map file")
	)
	flag.Parse()

	cfg, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}

	logger, logCloser := logging.New("server", logging.Options{Level: cfg.Server.LogLevel, File: cfg.Server.LogFile})
	defer logCloser.Close()

	if err := run(cfg, serverFlags{
		MapPath:    *mapPath,
		NewSize:    *newSize,
		DisableDB:  *disableDB,
		Snapshot:   strings.TrimSpace(*snapPath),
		LoadLatest: *loadLatest,
	}, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

type serverFlags struct {
	MapPath    string
	NewSize    string
	DisableDB  bool
	Snapshot   string
	LoadLatest bool
}

func loadSettings(path string) (settings.Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return settings.Defaults(), nil
	}
	return settings.Load(path)
}

func run(cfg settings.Settings, fl serverFlags, logger *logrus.Entry) error {
	mapDir := filepath.Join(cfg.Server.DataDir, "maps")
	snapDir := filepath.Join(cfg.Server.DataDir, "snapshots")
	if err := os.MkdirAll(mapDir, 0o755); err != nil {
		return err
	}

	am, err := assets.New(assets.Options{
		Renderer:   render.NewRecorder(),
		Logger:     logger,
		CacheBytes: int64(cfg.AssetCacheMB) << 20,
	})
	if err != nil {
		return err
	}
	defer am.Close()

	m := mapman.New(mapman.Options{Assets: am, Logger: logger, UndoMax: cfg.UndoMax, CullFaces: cfg.CullFaces})
	defer m.Close()
	source, err := openMap(m, mapOpenOptions{
		MapPath:     filepath.Join(mapDir, fl.MapPath),
		SnapshotDir: snapDir,
		Snapshot:    fl.Snapshot,
		LoadLatest:  fl.LoadLatest,
		NewSize:     fl.NewSize,
	})
	if err != nil {
		return fmt.Errorf("open map: %w", err)
	}
	logger.WithFields(logrus.Fields{"source": source, "id": m.ID(), "edits": m.Edits()}).Info("map ready")

	idx, err := openRuntimeIndex(cfg.Server.DataDir, fl.DisableDB)
	if err != nil {
		return fmt.Errorf("open index backend: %w", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	journal := persistlog.NewEditLogger(cfg.Server.DataDir)
	defer journal.Close()

	sess := editor.New(m, editor.Config{
		MapDir:        mapDir,
		MapPath:       fl.MapPath,
		SnapshotDir:   snapDir,
		MaxClients:    cfg.Server.MaxClients,
		KeepRevisions: cfg.Server.KeepRevisions,
		SnapshotEvery: time.Duration(cfg.Server.SnapshotEverySeconds) * time.Second,
	}, logger)
	sess.SetEditLogger(multiEditLogger{a: journal, b: idx})
	if idx != nil {
		sess.SetIndexer(idx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// Snapshot writer. It outlives the session loop so the exit snapshot
	// still reaches disk.
	snapCh := make(chan editor.SnapshotJob, 2)
	sess.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for job := range snapCh {
			if err := snapshot.WriteSnapshot(job.Path, job.Snap); err != nil {
				logger.WithError(err).Warn("snapshot write")
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(job.Path, job.Snap.Header)
			}
		}
	}()

	g.Go(func() error {
		defer close(snapCh)
		err := sess.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(sess, idx, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx2)
	})

	err = g.Wait()
	<-writerDone
	return err
}

func newMux(sess *editor.Session, idx runtimeIndex, logger logrus.FieldLogger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sess.ID(), sess.Metrics(), idx)
	})

	obsSrv := observer.NewServer(sess, logger)
	mux.HandleFunc("/v1/map", obsSrv.MapHandler())
	mux.HandleFunc("/v1/map.glb", obsSrv.ModelHandler())

	if envBool("BE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, logger).Handler())
	return mux
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
