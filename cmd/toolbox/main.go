// Command toolbox serves the upload, job and result API.
//
//	toolbox [flags]
//	toolbox migrate <up|down|status|version N|force N [--yes]|help>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/digital-toolbox/internal/api"
	"github.com/banshee-data/digital-toolbox/internal/config"
	"github.com/banshee-data/digital-toolbox/internal/db"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/jobs"
	"github.com/banshee-data/digital-toolbox/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	devMode     = flag.Bool("dev", false, "Read migrations from disk instead of the binary")
	listen      = flag.String("listen", config.DefaultListen, "Listen address")
	dbPath      = flag.String("db-path", config.DefaultDBPath, "Path to the sqlite database")
	uploadDir   = flag.String("upload-dir", config.DefaultUploadDir, "Directory for uploaded files")
	resultsDir  = flag.String("results-dir", config.DefaultResultsDir, "Directory for summaries and plots")
	workers     = flag.Int("workers", config.DefaultWorkers, "Number of processing workers")
	fixedMax    = flag.Float64("fixed-max", 0, "Normalization constant (0 keeps the configured value)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const shutdownTimeout = 5 * time.Second

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage:\n  toolbox [flags]\n  toolbox migrate <action>\n\nFlags:\n")
	flag.PrintDefaults()
}

// loadConfig reads the config file, if any, then applies every flag that was
// set explicitly on the command line.
func loadConfig(path string, set map[string]bool) (*config.ToolboxConfig, error) {
	cfg := config.DefaultToolboxConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadToolboxConfig(path); err != nil {
			return nil, err
		}
	}
	if set["listen"] {
		cfg.Listen = listen
	}
	if set["db-path"] {
		cfg.DBPath = dbPath
	}
	if set["upload-dir"] {
		cfg.UploadDir = uploadDir
	}
	if set["results-dir"] {
		cfg.ResultsDir = resultsDir
	}
	if set["workers"] {
		cfg.Workers = workers
	}
	if set["fixed-max"] {
		cfg.FixedMax = fixedMax
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	db.DevMode = *devMode

	if *showVersion {
		fmt.Println(version.String("toolbox"))
		return
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := loadConfig(*configPath, set)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath()); err != nil {
			if errors.Is(err, db.ErrMigrateUsage) {
				os.Exit(2)
			}
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if flag.NArg() > 0 {
		usage()
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.ToolboxConfig) error {
	log.Printf("%s starting", version.String("toolbox"))

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	runner, err := jobs.NewRunner(jobs.Options{
		Store:      db.NewJobStore(database, nil),
		FS:         fsutil.OSFileSystem{},
		UploadDir:  cfg.GetUploadDir(),
		ResultsDir: cfg.GetResultsDir(),
		FixedMax:   cfg.GetFixedMax(),
		Policy:     cfg.ConnectionPolicy(),
		IDColumn:   cfg.GetIDColumn(),
		PlotTitle:  cfg.GetPlotTitle(),
		Workers:    cfg.GetWorkers(),
		QueueSize:  cfg.GetQueueSize(),
	})
	if err != nil {
		return fmt.Errorf("failed to create job runner: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)
	defer runner.Stop()

	mux := api.NewServer(runner, cfg.GetMaxUploadBytes()).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return fmt.Errorf("failed to attach admin routes: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("listening on %s", cfg.GetListen())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		wg.Wait()
		return fmt.Errorf("failed to start server: %w", err)
	}
	wg.Wait()
	log.Print("graceful shutdown complete")
	return nil
}
