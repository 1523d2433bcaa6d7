package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kinetic-data/motion.report/internal/config"
	"github.com/kinetic-data/motion.report/internal/db"
	"github.com/kinetic-data/motion.report/internal/device"
	"github.com/kinetic-data/motion.report/internal/monitor"
	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/pipeline"
	"github.com/kinetic-data/motion.report/internal/pose"
)

var (
	listen     = flag.String("listen", ":8080", "Monitor listen address")
	dbFile     = flag.String("db", "motion_data.db", "Path to the sqlite database")
	exercise   = flag.String("exercise", "squat-bilateral", "Exercise id to run")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	tuningPath = flag.String("tuning", "", "Optional tuning config JSON file")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *tuningPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	profiler := device.NewProfiler(device.HostSignals)
	profile := profiler.Profile()
	monitoring.Logf("device tier %s: %dx%d @ %.0f fps, ensemble=%v",
		profile.Tier, profile.Resolution.Width, profile.Resolution.Height,
		profile.TargetFPS, profile.EnsembleEnabled)

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	if err := database.SeedCatalog(); err != nil {
		log.Fatalf("failed to seed exercise catalog: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	recoveries := &monitoring.Recoveries{}

	// No camera or model runtimes here; synthetic providers stand in for
	// them so the pipeline can run end to end on any machine.
	primary := pipeline.NewSyntheticDetector(pipeline.SyntheticConfig{
		Model: pose.ModelPrimary,
		Noise: 0.005,
		Seed:  1,
	})
	secondary := pipeline.NewSyntheticDetector(pipeline.SyntheticConfig{
		Model: pose.ModelSecondary,
		Noise: 0.01,
		Seed:  2,
	})

	session, err := pipeline.NewSession(pipeline.SessionConfig{
		Profile:    profile,
		Tuning:     tuning,
		Primary:    primary,
		Secondary:  secondary,
		Catalog:    database,
		Recoveries: recoveries,
		Sink:       database,
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	if err := session.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize detectors: %v", err)
	}
	session.SetExercise(*exercise)

	webserver := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		Session: session,
	})
	session.SetPublisher(webserver)

	startedAt := time.Now()
	if err := database.RecordSession(db.Session{
		SessionID:  session.ID(),
		ExerciseID: *exercise,
		DeviceTier: string(profile.Tier),
		StartedAt:  startedAt,
	}); err != nil {
		log.Fatalf("failed to record session: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webserver.Start(ctx); err != nil {
			log.Printf("monitor server error: %v", err)
		}
	}()

	// Capture loop. Frames arrive at the profile's target rate; the
	// session's scheduler decides which ones to process.
	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := time.Duration(float64(time.Second) / profile.TargetFPS)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var seq uint64
		for {
			select {
			case <-ctx.Done():
				log.Print("capture loop terminated")
				return
			case now := <-ticker.C:
				seq++
				session.ProcessFrame(ctx, pipeline.Frame{
					Seq:       seq,
					Timestamp: now,
					Width:     profile.Resolution.Width,
					Height:    profile.Resolution.Height,
				})
			}
		}
	}()

	wg.Wait()

	if err := database.EndSession(session.ID(), time.Now()); err != nil {
		log.Printf("failed to end session: %v", err)
	}
	summary, err := database.SummarizeSession(session.ID())
	if err != nil {
		log.Printf("failed to summarize session: %v", err)
		return
	}
	recov := recoveries.Snapshot()
	log.Printf("session %s: %d score ticks, overall avg=%.1f min=%.1f max=%.1f",
		summary.SessionID, summary.TickCount, summary.AvgOverall, summary.MinOverall, summary.MaxOverall)
	log.Printf("recoveries: init=%d absent=%d timeouts=%d degenerate=%d unknown=%d stale=%d",
		recov.InitFailures, recov.DetectionsAbsent, recov.DetectorTimeouts,
		recov.DegenerateGeometry, recov.UnknownExercises, recov.StaleResults)
}
