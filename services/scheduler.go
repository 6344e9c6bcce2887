// services/scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"meme-vote-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Task names, used for cron wiring, manual triggers and the scheduler log.
const (
	TaskGenerate    = "generate_memes"
	TaskOpenVoting  = "open_voting"
	TaskCloseVoting = "close_voting"
	TaskLotteryDraw = "lottery_draw"
	TaskCleanup     = "cleanup"
)

type taskFunc func(ctx context.Context, date time.Time) (*PhaseResult, error)

// TaskSpec binds a task name to its cron trigger (UTC).
type TaskSpec struct {
	Name string
	Cron string
}

// DefaultSchedule is the production wall-clock table.
var DefaultSchedule = []TaskSpec{
	{Name: TaskGenerate, Cron: "0 8 * * *"},
	{Name: TaskOpenVoting, Cron: "30 8 * * *"},
	{Name: TaskCloseVoting, Cron: "0 20 * * *"},
	{Name: TaskLotteryDraw, Cron: "0 20 * * 0"},
	{Name: TaskCleanup, Cron: "0 2 * * 0"},
}

// SchedulerStatus is the health surface exposed over HTTP.
type SchedulerStatus struct {
	Running    bool      `json:"running"`
	TaskCount  int       `json:"task_count"`
	LastUpdate time.Time `json:"last_update"`
}

// Supervisor owns the scheduler state in one value: the gocron instance, the
// schedule table and the run bookkeeping, all behind a mutex. Scheduled and
// manual triggers run the same phase functions; idempotency lives in the
// phases, not here.
type Supervisor struct {
	DB           *gorm.DB
	Orchestrator *Orchestrator
	Lottery      *LotteryService
	Clock        clockwork.Clock
	Schedule     []TaskSpec

	mu         sync.Mutex
	sched      gocron.Scheduler
	running    bool
	lastUpdate time.Time
	tasks      map[string]taskFunc
}

func NewSupervisor(db *gorm.DB, orch *Orchestrator, lottery *LotteryService, clock clockwork.Clock) *Supervisor {
	s := &Supervisor{
		DB:           db,
		Orchestrator: orch,
		Lottery:      lottery,
		Clock:        clock,
		Schedule:     DefaultSchedule,
	}
	s.tasks = map[string]taskFunc{
		TaskGenerate:    orch.GenerateDailyMemes,
		TaskOpenVoting:  orch.OpenVoting,
		TaskCloseVoting: orch.CloseVoting,
		TaskCleanup:     orch.Cleanup,
		TaskLotteryDraw: s.runLotteryDraw,
	}
	return s
}

func (s *Supervisor) runLotteryDraw(ctx context.Context, date time.Time) (*PhaseResult, error) {
	draw, err := s.Lottery.ExecuteDraw(utcDate(date), false)
	if errors.Is(err, ErrDrawAlreadyExecuted) {
		return &PhaseResult{Task: TaskLotteryDraw, AlreadyExists: true, Message: "draw already executed for " + utcDate(date)}, nil
	}
	if err != nil {
		return nil, err
	}
	msg := "empty pool, no winner"
	if draw.WinnerWallet != "" {
		msg = fmt.Sprintf("winner %s (%d tickets in pool)", draw.WinnerWallet, draw.TotalTicketsInPool)
	}
	return &PhaseResult{Task: TaskLotteryDraw, Message: msg}, nil
}

// Start builds the cron jobs from the schedule table and begins firing.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(s.Clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, spec := range s.Schedule {
		name := spec.Name
		_, err := sched.NewJob(
			gocron.CronJob(spec.Cron, false),
			gocron.NewTask(func() {
				s.runTask(context.Background(), name)
			}),
			gocron.WithName(name),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
	}

	sched.Start()
	s.sched = sched
	s.running = true
	s.lastUpdate = s.Clock.Now().UTC()
	log.Printf("[Scheduler] ✅ Started with %d scheduled tasks", len(s.Schedule))
	return nil
}

// Stop shuts the cron loop down. In-flight tasks finish.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	err := s.sched.Shutdown()
	s.sched = nil
	s.running = false
	log.Println("[Scheduler] ⏹️ Stopped")
	return err
}

// TriggerTask is the manual entry point. It runs the exact same function the
// cron firing would, so all state guards apply identically.
func (s *Supervisor) TriggerTask(ctx context.Context, name string) (*PhaseResult, error) {
	if _, ok := s.tasks[name]; !ok {
		return nil, ErrUnknownTask
	}
	return s.runTask(ctx, name)
}

// runTask executes one phase, recovers from panics, and writes the outcome to
// the scheduler log. A failed phase never crashes the process and is never
// retried automatically; a missed cycle needs a manual re-trigger.
func (s *Supervisor) runTask(ctx context.Context, name string) (result *PhaseResult, err error) {
	fn := s.tasks[name]
	date := s.Clock.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
			result = nil
		}
		s.logRun(name, result, err)
		s.mu.Lock()
		s.lastUpdate = s.Clock.Now().UTC()
		s.mu.Unlock()
	}()

	result, err = fn(ctx, date)
	return result, err
}

func (s *Supervisor) logRun(name string, result *PhaseResult, err error) {
	entry := models.SchedulerLog{
		ID:       uuid.NewString(),
		TaskName: name,
		Status:   models.SchedulerLogSuccess,
	}
	if err != nil {
		msg := err.Error()
		entry.Status = models.SchedulerLogFailed
		entry.Error = &msg
		log.Printf("[Scheduler] ❌ Task %s failed: %v", name, err)
	} else if result != nil {
		entry.Message = result.Message
	}

	if dbErr := s.DB.Create(&entry).Error; dbErr != nil {
		log.Printf("[Scheduler] ⚠️ Failed to write scheduler log for %s: %v", name, dbErr)
	}
}

// Status reports the supervisor surface consumed by the health endpoint.
func (s *Supervisor) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Running:    s.running,
		TaskCount:  len(s.Schedule),
		LastUpdate: s.lastUpdate,
	}
}

// Healthy is the degraded-status check: the supervisor must be running and
// must have fired something within the last 25 hours (every calendar day has
// at least one scheduled task).
func (s *Supervisor) Healthy() bool {
	st := s.Status()
	if !st.Running {
		return false
	}
	return s.Clock.Now().UTC().Sub(st.LastUpdate) < 25*time.Hour
}
