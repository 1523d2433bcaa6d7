// Command synth-session runs a synthetic exercise session offline, without a
// camera or the monitor server, and writes the score ticks as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/kinetic-data/motion.report/internal/config"
	"github.com/kinetic-data/motion.report/internal/db"
	"github.com/kinetic-data/motion.report/internal/device"
	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/motion"
	"github.com/kinetic-data/motion.report/internal/pipeline"
	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/timeutil"
)

type scoreTick struct {
	Frame    uint64            `json:"frame"`
	Score    *motion.FormScore `json:"score"`
	Feedback []string          `json:"feedback"`
}

func main() {
	output := flag.String("o", "session.jsonl", "output path")
	exercise := flag.String("exercise", "squat-bilateral", "exercise id")
	frames := flag.Int("n", 300, "number of frames to capture")
	noise := flag.Float64("noise", 0.005, "per-coordinate jitter amplitude")
	flag.Parse()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)

	profile := device.Profile{
		Tier:            device.TierHigh,
		Resolution:      device.Resolution{Width: 1280, Height: 720},
		TargetFPS:       30,
		ModelComplexity: 2,
		EnsembleEnabled: true,
		SmoothingFactor: 0.7,
	}

	// The mock clock makes runs deterministic and instant; frame timestamps
	// advance by exactly one frame interval.
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	interval := time.Duration(float64(time.Second) / profile.TargetFPS)

	session, err := pipeline.NewSession(pipeline.SessionConfig{
		Profile: profile,
		Tuning:  config.EmptyTuningConfig(),
		Primary: pipeline.NewSyntheticDetector(pipeline.SyntheticConfig{
			Model: pose.ModelPrimary,
			Noise: *noise,
			Seed:  1,
		}),
		Secondary: pipeline.NewSyntheticDetector(pipeline.SyntheticConfig{
			Model: pose.ModelSecondary,
			Noise: *noise * 2,
			Seed:  2,
		}),
		Catalog:    db.NewSeededMemoryCatalog(),
		Recoveries: &monitoring.Recoveries{},
		Clock:      clock,
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	ctx := context.Background()
	if err := session.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize detectors: %v", err)
	}
	session.SetExercise(*exercise)

	ticks := 0
	for i := 0; i < *frames; i++ {
		res := session.ProcessFrame(ctx, pipeline.Frame{
			Seq:       uint64(i + 1),
			Timestamp: clock.Now(),
			Width:     profile.Resolution.Width,
			Height:    profile.Resolution.Height,
		})
		clock.Advance(interval)
		if res.Skipped {
			continue
		}
		ticks++
		if err := enc.Encode(scoreTick{Frame: uint64(i + 1), Score: res.Score, Feedback: res.Feedback}); err != nil {
			log.Fatalf("failed to write tick: %v", err)
		}
		if ticks%50 == 0 {
			log.Printf("%d ticks (frame %d/%d)", ticks, i+1, *frames)
		}
	}
	log.Printf("✓ Created: %s (%d score ticks)", *output, ticks)
}
