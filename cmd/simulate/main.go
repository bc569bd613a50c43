// Command simulate fires concurrent bookings at the scheduling API for a small
// set of hot timeslots and checks afterwards that no timeslot was booked twice.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/api"
	"github.com/hackgods/medifit/internal/config"
	"github.com/hackgods/medifit/internal/db"
	"github.com/hackgods/medifit/internal/idcodec"
	"github.com/hackgods/medifit/internal/logging"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	HotSlots    int // how many free timeslots the workers fight over
	Patients    int
	PostgresDSN string
	IDPrefix    string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch status {
	case http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	ids     idcodec.Codec
	slots   []int64
	booking OperationMetrics
	log     *zap.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadSimConfig(baseCfg)

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pool.Close()

	slots, err := loadFreeSlots(ctx, pool, cfg.HotSlots)
	if err != nil {
		log.Fatal("load timeslots", zap.Error(err))
	}
	log.Info("loaded free timeslots", zap.Int("count", len(slots)))

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		ids:    idcodec.New(cfg.IDPrefix),
		slots:  slots,
		log:    log,
	}
	sim.Run(ctx)
	sim.PrintReport()

	doubles, err := findDoubleBookings(ctx, pool, slots)
	if err != nil {
		log.Fatal("verify bookings", zap.Error(err))
	}
	if len(doubles) > 0 {
		log.Fatal("timeslots booked more than once", zap.Int64s("timeslot_ids", doubles))
	}
	log.Info("no timeslot was booked more than once")
}

func loadSimConfig(base config.Config) SimConfig {
	return SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort), "/"),
		Duration:    getDuration("SIM_DURATION", 10*time.Second),
		Workers:     getInt("SIM_WORKERS", 32),
		HotSlots:    getInt("SIM_HOT_SLOTS", 10),
		Patients:    getInt("SIM_PATIENTS", 500),
		PostgresDSN: base.PostgresDSN,
		IDPrefix:    base.ExternalIDPrefix,
	}
}

func loadFreeSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]int64, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM timeslots
		WHERE free AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query timeslots: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no free future timeslots, create some first")
	}
	return ids, nil
}

func findDoubleBookings(ctx context.Context, pool *pgxpool.Pool, slots []int64) ([]int64, error) {
	rows, err := pool.Query(ctx, `
		SELECT timeslot_id FROM appointments
		WHERE timeslot_id = ANY($1)
		GROUP BY timeslot_id
		HAVING count(*) > 1
	`, slots)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var doubles []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		doubles = append(doubles, id)
	}
	return doubles, rows.Err()
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation",
		zap.Duration("duration", s.config.Duration),
		zap.Int("workers", s.config.Workers),
	)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, gofakeit.New(uint64(time.Now().UnixNano())+uint64(workerID)))
		}(i)
	}
	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, faker *gofakeit.Faker) {
	for ctx.Err() == nil {
		slotID := s.slots[faker.IntRange(0, len(s.slots)-1)]
		patientID := int64(faker.IntRange(1, s.config.Patients))
		s.doBooking(ctx, patientID, slotID)
	}
}

func (s *Simulator) doBooking(ctx context.Context, patientID, slotID int64) {
	body, _ := json.Marshal(api.CreateAppointmentRequest{TimeslotID: s.ids.Encode(slotID)})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.UserIDHeader, s.ids.Encode(patientID))

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.booking.Record(latency, 0)
		}
		return
	}
	_ = resp.Body.Close()
	s.booking.Record(latency, resp.StatusCode)
}

func (s *Simulator) PrintReport() {
	om := &s.booking
	total := atomic.LoadInt64(&om.Total)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("BOOKING SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Duration: %s  Workers: %d  Hot slots: %d\n", s.config.Duration, s.config.Workers, len(s.slots))
	if total == 0 {
		fmt.Println("no requests completed")
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Booked: %d (%.1f%%)\n", success, pct(success))
	fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

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
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
