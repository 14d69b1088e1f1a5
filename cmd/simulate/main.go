package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-status-board/internal/api"
	"github.com/hackgods/clinic-status-board/internal/clinic"
)

// simulate drives a running board-server the way a busy front desk would: patients are
// admitted, treatments started, moved through the special room and discharged, while
// viewers keep polling the board.
type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	AdmitRatio    float64
	TreatRatio    float64
	TransferRatio float64
	ReadRatio     float64
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Admit     OperationMetrics
	Discharge OperationMetrics
	Treatment OperationMetrics
	Transfer  OperationMetrics
	Waiting   OperationMetrics
	Director  OperationMetrics
	ReadBoard OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d admit=%.2f treat=%.2f transfer=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.AdmitRatio, cfg.TreatRatio, cfg.TransferRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 4),
		AdmitRatio:    getFloat("SIM_ADMIT_RATIO", 0.25),
		TreatRatio:    getFloat("SIM_TREAT_RATIO", 0.3),
		TransferRatio: getFloat("SIM_TRANSFER_RATIO", 0.15),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
	}

	// Normalize ratios
	total := cfg.AdmitRatio + cfg.TreatRatio + cfg.TransferRatio + cfg.ReadRatio
	if total > 0 {
		cfg.AdmitRatio /= total
		cfg.TreatRatio /= total
		cfg.TransferRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.APIBaseURL == "" {
		return fmt.Errorf("SIM_API_BASE_URL is required")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, ok := s.readBoard(ctx)
		if !ok {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		r := rng.Float64()
		switch {
		case r < s.config.AdmitRatio:
			s.doAdmitOrDischarge(ctx, rng, faker, b)
		case r < s.config.AdmitRatio+s.config.TreatRatio:
			s.doTreatment(ctx, rng, b)
		case r < s.config.AdmitRatio+s.config.TreatRatio+s.config.TransferRatio:
			s.doTransfer(ctx, rng, b)
		default:
			s.doWaitingOrDirector(ctx, rng, faker, b)
		}

		// pace the desk a little; people do not click a thousand times a second
		time.Sleep(time.Duration(50+rng.Intn(150)) * time.Millisecond)
	}
}

func (s *Simulator) readBoard(ctx context.Context) (api.BoardResponse, bool) {
	start := time.Now()
	var b api.BoardResponse

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/board", nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&b) == nil
	}
	s.metrics.ReadBoard.Record(latency, success, false)
	return b, success
}

// send issues one mutation and records it: 202 is success, 404/409 are the conflicts two
// desks racing on the same bed produce.
func (s *Simulator) send(ctx context.Context, om *OperationMetrics, method, path string, body any) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusAccepted
		conflict = resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusNotFound
	}
	om.Record(latency, success, conflict)
}

func pickBed(rng *rand.Rand, beds []clinic.Bed, occupied bool) (clinic.Bed, bool) {
	var candidates []clinic.Bed
	for _, b := range beds {
		if b.Occupied() == occupied {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return clinic.Bed{}, false
	}
	return candidates[rng.Intn(len(candidates))], true
}

func (s *Simulator) doAdmitOrDischarge(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker, b api.BoardResponse) {
	if bed, ok := pickBed(rng, b.Beds, false); ok && rng.Intn(3) > 0 {
		s.send(ctx, &s.metrics.Admit, http.MethodPut, fmt.Sprintf("/beds/%d/patient", bed.ID),
			api.AssignPatientRequest{Name: faker.Name()})
		return
	}
	if bed, ok := pickBed(rng, b.Beds, true); ok {
		s.send(ctx, &s.metrics.Discharge, http.MethodDelete, fmt.Sprintf("/beds/%d/patient", bed.ID), nil)
	}
}

func (s *Simulator) doTreatment(ctx context.Context, rng *rand.Rand, b api.BoardResponse) {
	bed, ok := pickBed(rng, b.Beds, true)
	if !ok || len(bed.Treatments) == 0 {
		return
	}
	t := bed.Treatments[rng.Intn(len(bed.Treatments))]

	next := clinic.StatusInProgress
	switch t.Status {
	case clinic.StatusInProgress:
		next = clinic.StatusDone
	case clinic.StatusDone:
		next = clinic.StatusSkipped
	}
	s.send(ctx, &s.metrics.Treatment, http.MethodPatch,
		fmt.Sprintf("/beds/%d/treatments/%s", bed.ID, t.ID),
		clinic.TreatmentUpdate{Status: &next})
}

func (s *Simulator) doTransfer(ctx context.Context, rng *rand.Rand, b api.BoardResponse) {
	from, ok := pickBed(rng, b.Beds, true)
	if !ok {
		return
	}
	to := clinic.SpecialBedID
	if from.ID == clinic.SpecialBedID {
		to = 1 + rng.Intn(len(b.Beds)-1)
	}

	var payload map[string]any
	if rng.Intn(2) == 0 || len(from.Treatments) == 0 {
		payload = map[string]any{"type": clinic.IntentPatientTransfer, "fromBedId": from.ID, "toBedId": to}
	} else {
		t := from.Treatments[rng.Intn(len(from.Treatments))]
		payload = map[string]any{"type": clinic.IntentTreatmentTransfer, "fromBedId": from.ID, "toBedId": to, "treatmentId": t.ID}
	}
	s.send(ctx, &s.metrics.Transfer, http.MethodPost, "/transfers", payload)
}

func (s *Simulator) doWaitingOrDirector(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker, b api.BoardResponse) {
	switch rng.Intn(4) {
	case 0:
		category := clinic.Categories[rng.Intn(len(clinic.Categories))]
		s.send(ctx, &s.metrics.Waiting, http.MethodPost, "/waiting",
			api.AddWaitingRequest{Name: faker.Name(), Category: category})
	case 1:
		if len(b.WaitingList) == 0 {
			return
		}
		w := b.WaitingList[rng.Intn(len(b.WaitingList))]
		if bed, ok := pickBed(rng, b.Beds, false); ok {
			s.send(ctx, &s.metrics.Waiting, http.MethodPost, "/transfers",
				map[string]any{"type": clinic.IntentWaitingIntake, "waitingId": w.ID, "toBedId": bed.ID})
			return
		}
		s.send(ctx, &s.metrics.Waiting, http.MethodDelete, "/waiting/"+w.ID, nil)
	case 2:
		bed, ok := pickBed(rng, b.Beds, true)
		if !ok || len(bed.Treatments) == 0 {
			return
		}
		t := bed.Treatments[rng.Intn(len(bed.Treatments))]
		bedID := bed.ID
		s.send(ctx, &s.metrics.Director, http.MethodPost, "/director-tasks",
			api.QueueDirectorTaskRequest{BedID: &bedID, TreatmentID: t.ID})
	default:
		if len(b.DirectorTasks) == 0 {
			return
		}
		task := b.DirectorTasks[rng.Intn(len(b.DirectorTasks))]
		s.send(ctx, &s.metrics.Director, http.MethodPost, "/director-tasks/"+task.ID+"/complete", nil)
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Admit", &s.metrics.Admit)
	printOperationReport("Discharge", &s.metrics.Discharge)
	printOperationReport("Treatment status", &s.metrics.Treatment)
	printOperationReport("Transfer", &s.metrics.Transfer)
	printOperationReport("Waiting list", &s.metrics.Waiting)
	printOperationReport("Director queue", &s.metrics.Director)
	printOperationReport("Read board", &s.metrics.ReadBoard)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
