package config

import (
	"context"
	"os"
	"time"
)

// WatchCatalog polls path and calls onUpdate with each successfully parsed
// revision. The first load happens before it returns; a catalog that fails
// to parse later is skipped and the previous one stays in effect.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, onUpdate func(*Catalog)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cat)
	}
	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil || !info.ModTime().After(lastMod) {
					continue
				}
				cat, err := LoadCatalog(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cat)
				}
			}
		}
	}()
	return nil
}
