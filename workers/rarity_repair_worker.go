// workers/rarity_repair_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"meme-vote-system/services"
)

// RarityRepairWorker periodically re-derives rarity for memes whose
// denormalized vote count drifted from the votes table. Rarity updates are
// swallowed on the vote path, so this loop is what heals them.
type RarityRepairWorker struct {
	rarity    *services.RarityService
	interval  time.Duration
	batchSize int
}

func NewRarityRepairWorker(rarity *services.RarityService, interval time.Duration) *RarityRepairWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RarityRepairWorker{rarity: rarity, interval: interval, batchSize: 50}
}

func (w *RarityRepairWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Rarity Repair Worker…")
	go w.run(ctx)
}

func (w *RarityRepairWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.repairBatch()
		case <-ctx.Done():
			log.Println("⏹️ Rarity Repair Worker stopped")
			return
		}
	}
}

func (w *RarityRepairWorker) repairBatch() {
	ids, err := w.rarity.FindStaleMemes(w.batchSize)
	if err != nil {
		log.Printf("[RarityRepair] ❌ stale scan failed: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	repaired := 0
	for _, id := range ids {
		if err := w.rarity.RecomputeMemeRarity(id); err != nil {
			log.Printf("[RarityRepair] ⚠️ recompute failed for meme %s: %v", id, err)
			continue
		}
		repaired++
	}
	log.Printf("[RarityRepair] ✅ Repaired rarity on %d/%d memes", repaired, len(ids))
}
