package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-status-board/internal/board"
	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/config"
	"github.com/hackgods/clinic-status-board/internal/docstore"
	"github.com/hackgods/clinic-status-board/internal/logger"
)

// seed fills the shared board with demo patients so a fresh install has something to show.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Backend == config.BackendMemory {
		log.Fatal("seed needs a shared DOC_BACKEND (redis or postgres)")
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "seed", cfg.LogFile)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := docstore.Open(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("open backend: %v", err)
	}
	defer backend.Close()

	store := board.NewStore(backend.Store, cfg.DocumentPath, lg, board.NewMetrics(nil))
	if err := store.Start(ctx); err != nil {
		log.Fatalf("board unavailable: %v", err)
	}
	defer store.Stop()
	<-store.Ready()

	svc := board.NewService(store, lg)
	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBeds(ctx, svc, store, getInt("SEED_BEDS", 6)); err != nil {
		log.Fatalf("seed beds: %v", err)
	}
	if err := seedWaiting(ctx, svc, store, getInt("SEED_WAITING", 4)); err != nil {
		log.Fatalf("seed waiting list: %v", err)
	}

	log.Println("seed complete")
}

func seedBeds(ctx context.Context, svc *board.Service, store *board.Store, count int) error {
	log.Printf("seeding %d beds", count)

	for _, bed := range store.Snapshot().Beds {
		if count == 0 {
			break
		}
		if bed.Occupied() {
			continue
		}
		name := gofakeit.Name()
		if err := svc.AssignPatient(ctx, bed.ID, name); err != nil {
			return err
		}
		if err := waitFor(ctx, store, func(s clinic.Snapshot) bool {
			b, _ := s.Bed(bed.ID)
			return b.PatientName == name
		}); err != nil {
			return err
		}
		count--

		// start one treatment on about half the beds
		if !gofakeit.Bool() {
			continue
		}
		seeded, _ := store.Snapshot().Bed(bed.ID)
		if len(seeded.Treatments) == 0 {
			continue
		}
		t := seeded.Treatments[gofakeit.Number(0, len(seeded.Treatments)-1)]
		status := clinic.StatusInProgress
		area := gofakeit.RandomString([]string{"목", "어깨", "허리", "무릎", "발목"})
		if err := svc.UpdateTreatment(ctx, bed.ID, t.ID, clinic.TreatmentUpdate{Status: &status, Area: &area}); err != nil {
			return err
		}
		if err := waitFor(ctx, store, func(s clinic.Snapshot) bool {
			b, _ := s.Bed(bed.ID)
			for _, tr := range b.Treatments {
				if tr.ID == t.ID {
					return tr.Status == clinic.StatusInProgress
				}
			}
			return false
		}); err != nil {
			return err
		}
	}

	log.Println("beds seeded")
	return nil
}

func seedWaiting(ctx context.Context, svc *board.Service, store *board.Store, count int) error {
	log.Printf("seeding %d waiting patients", count)

	for i := 0; i < count; i++ {
		category := clinic.Categories[gofakeit.Number(0, len(clinic.Categories)-1)]
		want := len(store.Snapshot().WaitingList) + 1
		if err := svc.AddWaitingPatient(ctx, gofakeit.Name(), category); err != nil {
			return err
		}
		if err := waitFor(ctx, store, func(s clinic.Snapshot) bool {
			return len(s.WaitingList) >= want
		}); err != nil {
			return err
		}
	}

	log.Println("waiting list seeded")
	return nil
}

// waitFor blocks until the pushed board satisfies cond. Mutations read the local board, so
// the next one must not start before the previous commit has come back.
func waitFor(ctx context.Context, store *board.Store, cond func(clinic.Snapshot) bool) error {
	done := make(chan struct{})
	var once sync.Once
	cancel := store.Subscribe(func(s clinic.Snapshot) {
		if cond(s) {
			once.Do(func() { close(done) })
		}
	})
	defer cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
