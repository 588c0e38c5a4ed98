package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/shuttlebattle/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueSize     = 256
	batchSize     = 50
	flushInterval = 2 * time.Second
)

// BattleEntry is the summary of one finished battle.
type BattleEntry struct {
	BattleID  string // generated when empty
	Result    string
	Ticks     int64
	Seed      int64
	Slot      int
	Survivors interface{}
	Messages  []string
	Duration  time.Duration
}

// Service writes battle records asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.BattleRecord
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.BattleRecord, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues a battle summary and returns the record id.
func (svc *Service) Record(entry BattleEntry) string {
	id := entry.BattleID
	if id == "" {
		id = uuid.New().String()
	}
	if entry.Messages == nil {
		entry.Messages = []string{}
	}
	msgJSON, _ := json.Marshal(entry.Messages)
	survJSON, _ := json.Marshal(entry.Survivors)
	rec := &model.BattleRecord{
		ID:         id,
		Result:     entry.Result,
		Ticks:      entry.Ticks,
		Seed:       entry.Seed,
		Slot:       entry.Slot,
		Survivors:  datatypes.JSON(survJSON),
		Messages:   datatypes.JSON(msgJSON),
		DurationMs: entry.Duration.Milliseconds(),
	}
	select {
	case svc.ch <- rec:
	default:
		svc.logger.Warn("audit channel full, dropping battle record",
			zap.String("battle", id), zap.String("result", entry.Result))
	}
	return id
}

// Recent returns up to limit records, newest first.
func (svc *Service) Recent(ctx context.Context, limit int) ([]model.BattleRecord, error) {
	var out []model.BattleRecord
	err := svc.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Stop flushes remaining records and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.BattleRecord, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("battle record batch write failed",
				zap.Int("records", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-svc.ch:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case rec := <-svc.ch:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
