package app

import (
	"fmt"
	"strings"

	"github.com/clinicore/conventions/internal/clients/redis"
	"github.com/clinicore/conventions/internal/platform/logger"
)

type Clients struct {
	// Locker is nil when no redis is configured.
	Locker redis.Locker
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var locker redis.Locker
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		l, err := redis.NewLocker(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis locker: %w", err)
		}
		locker = l
	}
	return Clients{Locker: locker}, nil
}

func (c Clients) Close() {
	if c.Locker != nil {
		_ = c.Locker.Close()
	}
}
