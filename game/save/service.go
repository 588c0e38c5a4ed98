// Package save persists player progress in numbered save slots. Slots
// live in the SQL database; reads are cached.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kasuganosora/shuttlebattle/cache"
	"github.com/kasuganosora/shuttlebattle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultPlayerName = "Player"

var (
	ErrSlotEmpty   = errors.New("save: slot is empty")
	ErrInvalidSlot = errors.New("save: slot must be positive")
)

// Data is the content of one save slot.
type Data struct {
	PlayerName string `json:"player_name"`
	Progress   int    `json:"progress"`
}

// Defaults returns the data of a fresh game.
func Defaults() Data {
	return Data{PlayerName: DefaultPlayerName, Progress: 0}
}

// Service reads and writes save slots.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache // optional
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a save Service. c may be nil to disable caching.
func NewService(db *gorm.DB, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, cache: c, ttl: ttl, logger: logger}
}

func slotKey(slot int) string {
	return "save:" + strconv.Itoa(slot)
}

// Load returns the slot content, or ErrSlotEmpty if nothing was written.
func (svc *Service) Load(ctx context.Context, slot int) (Data, error) {
	if slot <= 0 {
		return Data{}, ErrInvalidSlot
	}
	if d, ok := svc.cached(ctx, slot); ok {
		return d, nil
	}

	var row model.SaveSlot
	err := svc.db.WithContext(ctx).First(&row, "slot = ?", slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Data{}, ErrSlotEmpty
	}
	if err != nil {
		return Data{}, fmt.Errorf("save: load slot %d: %w", slot, err)
	}
	d := Data{PlayerName: row.PlayerName, Progress: row.Progress}
	svc.remember(ctx, slot, d)
	return d, nil
}

// Write stores d in the slot, replacing any previous content.
func (svc *Service) Write(ctx context.Context, slot int, d Data) error {
	if slot <= 0 {
		return ErrInvalidSlot
	}
	row := model.SaveSlot{Slot: slot, PlayerName: d.PlayerName, Progress: d.Progress}
	err := svc.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"player_name", "progress", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save: write slot %d: %w", slot, err)
	}
	svc.remember(ctx, slot, d)
	svc.logger.Info("slot saved",
		zap.Int("slot", slot), zap.String("player", d.PlayerName), zap.Int("progress", d.Progress))
	return nil
}

// Init writes the defaults into the slot.
func (svc *Service) Init(ctx context.Context, slot int) (Data, error) {
	d := Defaults()
	return d, svc.Write(ctx, slot, d)
}

// LoadOrInit loads the slot, initializing it first when empty.
func (svc *Service) LoadOrInit(ctx context.Context, slot int) (Data, error) {
	d, err := svc.Load(ctx, slot)
	if errors.Is(err, ErrSlotEmpty) {
		return svc.Init(ctx, slot)
	}
	return d, err
}

// AddProgress increments the slot's progress counter and returns the new data.
func (svc *Service) AddProgress(ctx context.Context, slot, delta int) (Data, error) {
	d, err := svc.LoadOrInit(ctx, slot)
	if err != nil {
		return Data{}, err
	}
	d.Progress += delta
	return d, svc.Write(ctx, slot, d)
}

func (svc *Service) cached(ctx context.Context, slot int) (Data, bool) {
	if svc.cache == nil {
		return Data{}, false
	}
	raw, err := svc.cache.Get(ctx, slotKey(slot))
	if err != nil {
		if !cache.IsNotFound(err) {
			svc.logger.Warn("save cache read failed", zap.Int("slot", slot), zap.Error(err))
		}
		return Data{}, false
	}
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		svc.logger.Warn("save cache entry corrupt", zap.Int("slot", slot), zap.Error(err))
		_ = svc.cache.Del(ctx, slotKey(slot))
		return Data{}, false
	}
	return d, true
}

func (svc *Service) remember(ctx context.Context, slot int, d Data) {
	if svc.cache == nil {
		return
	}
	raw, _ := json.Marshal(d)
	if err := svc.cache.Set(ctx, slotKey(slot), string(raw), svc.ttl); err != nil {
		svc.logger.Warn("save cache write failed", zap.Int("slot", slot), zap.Error(err))
	}
}
