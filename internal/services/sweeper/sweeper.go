// Package sweeper периодически удаляет устаревшие файлы из каталогов
// загрузок и отчётов. Запускается отдельной горутиной и не касается
// путей обработки запросов.
package sweeper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dataweaveai/condition-report/internal/lib/sl"
)

type Service struct {
	dirs      []string
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

func New(dirs []string, interval, retention time.Duration, log *slog.Logger) *Service {
	return &Service{
		dirs:      dirs,
		interval:  interval,
		retention: retention,
		log:       log,
	}
}

// Run выполняет очистку сразу, затем по тикеру, до отмены контекста.
func (s *Service) Run(ctx context.Context) {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		}
	}
}

// sweep удаляет файлы старше срока хранения. Неудача с отдельным
// файлом логируется и пропускается.
func (s *Service) sweep() {
	cutoff := time.Now().Add(-s.retention)
	var removed int

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			s.log.Warn("failed to read directory", "dir", dir, sl.Err(err))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				s.log.Warn("failed to stat file", "name", entry.Name(), sl.Err(err))
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.log.Warn("failed to remove file", "path", path, sl.Err(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("sweep completed", "removed", removed)
	}
}
