// Command gridentry-demo exercises a handful of cells end to end: fresh
// put/get, event subscription, index lookups, and TTL expiry.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/entrymap"
	"github.com/shaj13/gridentry/eventbus"
	"github.com/shaj13/gridentry/store"
	"github.com/shaj13/gridentry/ttltracker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	versions := gridentry.NewLocalVersionService(1, 0)
	bus := eventbus.New()
	tracker := ttltracker.New()
	backend := store.New()

	events := make(chan gridentry.EventRecord, 16)
	bus.Notify(events)
	go func() {
		for rec := range events {
			logger.Info("event", "type", rec.Type, "key", string(rec.Key.Bytes))
		}
	}()

	cfg := gridentry.Config{
		VersionSvc:     versions,
		Store:          backend,
		EventBus:       bus,
		TTLTracker:     tracker,
		LocalNodeOrder: 1,
	}

	m := entrymap.New(entrymap.LRU, 1024, cfg)
	ctx := context.Background()

	key := gridentry.Key{Bytes: []byte("greeting")}
	cell, created := m.GetOrCreate(key, nil, 0)
	logger.Info("cell created", "fresh", created)

	res, err := cell.InnerSet(ctx, "hello, grid", gridentry.SetOptions{})
	if err != nil {
		logger.Error("set failed", "err", err)
		os.Exit(1)
	}
	logger.Info("set", "success", res.Success)

	got, err := cell.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true, EmitEvent: true})
	if err != nil {
		logger.Error("get failed", "err", err)
		os.Exit(1)
	}
	logger.Info("get", "found", got.Found, "value", got.Value)

	if indexed, ver, ok := m.Lookup(key); ok {
		logger.Info("indexed", "value", indexed, "version", ver.Order)
	}

	ttlKey := gridentry.Key{Bytes: []byte("short-lived")}
	ttlCell, _ := m.GetOrCreate(ttlKey, nil, 0)
	if _, err := ttlCell.InnerSet(ctx, "fleeting", gridentry.SetOptions{
		ExplicitTTL: durationPtr(50 * time.Millisecond),
	}); err != nil {
		logger.Error("ttl set failed", "err", err)
		os.Exit(1)
	}

	time.Sleep(75 * time.Millisecond)
	afterExpiry, err := ttlCell.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true, EmitEvent: true})
	if err != nil {
		logger.Error("ttl get failed", "err", err)
		os.Exit(1)
	}
	logger.Info("ttl get", "found", afterExpiry.Found, "expired", afterExpiry.Expired)

	close(events)
}

func durationPtr(d time.Duration) *time.Duration { return &d }
