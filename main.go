package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kasuganosora/shuttlebattle/audit"
	"github.com/kasuganosora/shuttlebattle/cache"
	"github.com/kasuganosora/shuttlebattle/config"
	dbadapter "github.com/kasuganosora/shuttlebattle/db"
	"github.com/kasuganosora/shuttlebattle/game/battle"
	"github.com/kasuganosora/shuttlebattle/game/feedback"
	"github.com/kasuganosora/shuttlebattle/game/save"
	"github.com/kasuganosora/shuttlebattle/game/scene"
	"github.com/kasuganosora/shuttlebattle/model"
	"github.com/kasuganosora/shuttlebattle/plugin/hook"
	"github.com/kasuganosora/shuttlebattle/resource"
	"github.com/kasuganosora/shuttlebattle/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer dbadapter.Close(db)
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer cache.Close(c)
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Battle data ----
	res := resource.NewLoader(cfg.Data.DataPath, cfg.Data.SkillsFile, cfg.Data.FormationFile)
	if err := res.Load(); err != nil {
		log.Fatalf("resource: %v", err)
	}
	if res.Formation == nil {
		log.Fatalf("resource: no formation in %s", cfg.Data.DataPath)
	}
	if _, ok := res.Skills.SkillByID(cfg.Battle.DefaultSkill); !ok {
		logger.Warn("default skill is not defined; automatic units will skip their turns",
			zap.String("skill", cfg.Battle.DefaultSkill))
	}
	logger.Info("battle data loaded",
		zap.Int("skills", res.Skills.Len()),
		zap.Int("allies", len(res.Formation.Allies)),
		zap.Int("enemies", len(res.Formation.Enemies)))

	// ---- Save slot ----
	saves := save.NewService(db, c, cfg.Cache.SlotTTL, logger)
	slot, err := saves.Load(ctx, cfg.Save.Slot)
	if errors.Is(err, save.ErrSlotEmpty) {
		slot, err = saves.Init(ctx, cfg.Save.Slot)
		if err == nil && cfg.Save.PlayerName != "" && cfg.Save.PlayerName != slot.PlayerName {
			slot.PlayerName = cfg.Save.PlayerName
			err = saves.Write(ctx, cfg.Save.Slot, slot)
		}
	}
	if err != nil {
		log.Fatalf("save: %v", err)
	}
	logger.Info("save slot ready",
		zap.Int("slot", cfg.Save.Slot),
		zap.String("player", slot.PlayerName),
		zap.Int("progress", slot.Progress))

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Hooks ----
	hooks := hook.NewCenter()
	hooks.Register(hook.AfterAction, 100, "log", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		if out, ok := data.(battle.ActionOutcome); ok {
			logger.Debug("action", zap.String("user", out.UserID), zap.String("target", out.TargetID),
				zap.Int("damage", out.Damage), zap.Bool("missed", out.Missed))
		}
		return data, nil
	})

	// ---- Battle ----
	b, err := scene.New(scene.Deps{
		Skills:    res.Skills,
		Formation: res.Formation,
		Field:     fieldFromConfig(cfg.Battle),
		Sink:      feedback.NewSink(cfg.Feedback.EffectTTL, cfg.Feedback.MarkerTTL, logger),
		Cache:     c,
		PubSub:    pubsub,
		Saves:     saves,
		Audit:     auditSvc,
		Hooks:     hooks,
		Logger:    logger,
	}, scene.Options{
		Seed:              cfg.Battle.Seed,
		Tick:              time.Duration(cfg.Battle.TickMs) * time.Millisecond,
		DefaultSkill:      cfg.Battle.DefaultSkill,
		CommandDelayTicks: cfg.Battle.CommandDelayTicks,
		MaxTicks:          int64(cfg.Battle.MaxTicks),
		MessageLogSize:    cfg.Battle.MessageLogSize,
		Slot:              cfg.Save.Slot,
	})
	if err != nil {
		log.Fatalf("battle: %v", err)
	}

	var sum scene.Summary
	if cfg.Battle.Realtime {
		sum, err = b.RunRealtime(ctx, sched)
	} else {
		sum, err = b.RunHeadless(ctx)
	}
	if err != nil {
		logger.Warn("battle did not finish", zap.Error(err))
	}

	out, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(out))

	auditSvc.Stop(context.Background())
	if recent, err := auditSvc.Recent(context.Background(), 5); err == nil {
		for _, r := range recent {
			logger.Info("recent battle", zap.String("id", r.ID), zap.String("result", r.Result), zap.Int64("ticks", r.Ticks))
		}
	}
}

func fieldFromConfig(bc config.BattleConfig) battle.Field {
	return battle.Field{
		CenterX:  bc.CenterX,
		PxPerSec: bc.PxPerSec,
		AllyX:    bc.AllyX,
		EnemyX:   bc.EnemyX,
		LaneY:    bc.LaneY,
	}
}
