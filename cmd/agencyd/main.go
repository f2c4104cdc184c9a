package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/agency-engine/internal/audit"
	"github.com/danielpatrickdp/agency-engine/internal/backend"
	"github.com/danielpatrickdp/agency-engine/internal/cipher"
	"github.com/danielpatrickdp/agency-engine/internal/config"
	"github.com/danielpatrickdp/agency-engine/internal/contract"
	"github.com/danielpatrickdp/agency-engine/internal/events"
	"github.com/danielpatrickdp/agency-engine/internal/lifecycle"
	"github.com/danielpatrickdp/agency-engine/internal/posture"
	"github.com/danielpatrickdp/agency-engine/internal/relstate"
	"github.com/danielpatrickdp/agency-engine/internal/safetynet"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region main

func main() {
	configPath := flag.String("config", envOr("AGENCY_CONFIG", "agency.yaml"), "path to agency.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	ladder := tier.DefaultLadder()
	if len(cfg.TierBounds) > 0 {
		ladder, err = tier.NewLadder(cfg.TierBounds)
		if err != nil {
			log.Fatalf("tier bounds: %v", err)
		}
	}

	store, err := relstate.NewStore(cfg.DBPath())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	bus := buildBus(cfg)
	defer bus.Close()

	writer, err := relstate.NewWriter(store, ladder, bus, relstate.WriterConfig{
		DecayRatePerDay: cfg.DecayRatePerDay,
		ElasticMax:      cfg.ElasticMax.Std(),
		ElasticAmplify:  cfg.ElasticAmplify,
	})
	if err != nil {
		log.Fatalf("state writer: %v", err)
	}

	auditLog, err := audit.NewLog(store.DB())
	if err != nil {
		log.Fatalf("audit log: %v", err)
	}
	reqStore, err := lifecycle.NewStore(store.DB())
	if err != nil {
		log.Fatalf("request store: %v", err)
	}
	key, err := cipher.Load(cfg.KeyPath())
	if err != nil {
		log.Fatalf("snapshot key: %v", err)
	}
	resources, err := backend.NewFileResourceStore(cfg.ResourcePath())
	if err != nil {
		log.Fatalf("resource store: %v", err)
	}
	net, err := safetynet.NewNet(store.DB(), resources, key, cfg.UndoWindow.Std())
	if err != nil {
		log.Fatalf("safety net: %v", err)
	}

	manager := lifecycle.NewManager(reqStore, auditLog, writer, contract.DefaultRegistry(),
		net, backend.NewFileBackend(resources), bus, lifecycle.ManagerConfig{
			TrustOnComplete:  cfg.TrustOnComplete,
			WarmthOnComplete: cfg.WarmthOnComplete,
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	writer.StartDecay(ctx, cfg.DecayInterval.Std())
	net.StartSweep(ctx, cfg.SweepInterval.Std(), cfg.BlobRetention.Std())

	snap := writer.Snapshot()
	fmt.Println("Agency engine ready.")
	fmt.Printf("  DB: %s | Resources: %s | Undo window: %s\n", cfg.DBPath(), cfg.ResourcePath(), cfg.UndoWindow.Std())
	fmt.Printf("  trust=%.2f warmth=%.2f tier=%s posture=%s\n", snap.Trust, snap.Warmth, writer.Tier(), snap.Posture)
	fmt.Println("Commands: do | dry | undo | trail | state | caps | posture | elastic | quit")

	repl(manager, writer)
}

// #endregion main

// #region repl

func repl(manager *lifecycle.Manager, writer *relstate.Writer) {
	scanner := bufio.NewScanner(os.Stdin)
	registry := contract.DefaultRegistry()
	selectorCfg := posture.DefaultSelectorConfig()

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return

		case "state":
			snap := writer.Snapshot()
			fmt.Printf("version=%s trust=%.3f warmth=%.3f arousal=%.3f valence=%.3f\n",
				shortID(snap.VersionID), snap.Trust, snap.Warmth, snap.Arousal, snap.Valence)
			fmt.Printf("tier=%s posture=%s elastic=%v\n", writer.Tier(), snap.Posture, writer.ElasticActive())

		case "caps":
			for _, c := range registry.CapabilitiesFor(writer.Tier()) {
				scope := c.SandboxScope
				if scope == "" {
					scope = "(unscoped)"
				}
				fmt.Printf("  %-16s min=%s scope=%s rollback=%s\n", c.ActionType, c.MinimumTier, scope, c.RollbackStrategy)
			}

		case "do", "dry":
			if len(fields) < 3 {
				fmt.Println("usage: do|dry <action_type> <resource> [content...]")
				continue
			}
			input := lifecycle.RequestInput{
				ActionType:  fields[1],
				Resource:    fields[2],
				RequestedBy: "repl",
				DryRun:      fields[0] == "dry",
			}
			if len(fields) > 3 {
				input.Parameters = map[string]string{"content": strings.Join(fields[3:], " ")}
			}
			req, err := manager.Request(context.Background(), input)
			if err != nil {
				fmt.Printf("[%s] %s: %v\n", shortID(req.ID), req.Status, err)
				continue
			}
			fmt.Printf("[%s] %s: %s\n", shortID(req.ID), req.Status, req.Output)

		case "undo":
			if len(fields) < 2 {
				fmt.Println("usage: undo <action_id> [reason...]")
				continue
			}
			reason := "user undo"
			if len(fields) > 2 {
				reason = strings.Join(fields[2:], " ")
			}
			result, err := manager.Rollback(context.Background(), fields[1], reason)
			if err != nil {
				fmt.Printf("undo failed: %v\n", err)
				continue
			}
			fmt.Printf("restored %d resource(s): %s\n", len(result.Restored), strings.Join(result.Restored, ", "))

		case "trail":
			if len(fields) < 2 {
				fmt.Println("usage: trail <action_id>")
				continue
			}
			entries, err := manager.AuditTrail(fields[1])
			if err != nil {
				fmt.Printf("trail: %v\n", err)
				continue
			}
			for _, e := range entries {
				fmt.Printf("  %s  %-28s %-22s %s\n",
					e.CreatedAt.Format("15:04:05.000"), e.Transition, e.Cause, e.Detail)
			}

		case "posture":
			if len(fields) < 4 {
				fmt.Println("usage: posture <stress 0..1> <energy 0..1> <task_type>")
				continue
			}
			stress, err1 := strconv.ParseFloat(fields[1], 64)
			energy, err2 := strconv.ParseFloat(fields[2], 64)
			if err1 != nil || err2 != nil {
				fmt.Println("stress and energy must be numbers in [0, 1]")
				continue
			}
			snap := writer.Snapshot()
			selected := posture.Select(
				posture.StateView{Trust: snap.Trust, Warmth: snap.Warmth},
				posture.ContextSignals{Stress: stress, Energy: energy, TaskType: posture.TaskType(fields[3])},
				selectorCfg,
			)
			if _, err := writer.Apply(relstate.Event{
				Posture: selected,
				Reason:  fmt.Sprintf("posture selection: stress=%.2f energy=%.2f task=%s", stress, energy, fields[3]),
			}); err != nil {
				fmt.Printf("posture: %v\n", err)
				continue
			}
			fmt.Printf("posture -> %s\n", selected)

		case "elastic":
			if len(fields) < 3 {
				fmt.Println("usage: elastic <minutes> <reason...>")
				continue
			}
			minutes, err := strconv.Atoi(fields[1])
			if err != nil || minutes <= 0 {
				fmt.Println("minutes must be a positive integer")
				continue
			}
			until, err := writer.EnterElastic(time.Duration(minutes)*time.Minute, strings.Join(fields[2:], " "))
			if err != nil {
				fmt.Printf("elastic: %v\n", err)
				continue
			}
			fmt.Printf("elastic window open until %s\n", until.Format(time.RFC3339))

		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

// #endregion repl

// #region helpers

func buildBus(cfg config.Config) events.Bus {
	if cfg.Redis.Address == "" {
		return events.NewMemoryBus()
	}
	bus, err := events.NewRedisBus(events.RedisBusConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Stream:   cfg.Redis.Stream,
	})
	if err != nil {
		log.Printf("[EVENTS] redis unavailable, falling back to in-memory bus: %v", err)
		return events.NewMemoryBus()
	}
	return bus
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion helpers
