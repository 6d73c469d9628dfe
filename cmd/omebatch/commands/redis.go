package commands

import (
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/ome-contrib/omebatch/internal/config"
	"github.com/ome-contrib/omebatch/pkg/runlog"
)

// openRunLog builds the optional run activity log client from the config's
// redis section. Returns nil when no redis is configured or the URL is
// unusable; the run log is observational and never blocks a batch.
func openRunLog(cfg *config.Config) *runlog.Client {
	if cfg.Redis == nil {
		return nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Printf("[CLI] Ignoring run log, bad redis URL: %v", err)
		return nil
	}
	client, err := runlog.NewClient(opts, cfg.Redis.Instance)
	if err != nil {
		log.Printf("[CLI] Ignoring run log: %v", err)
		return nil
	}
	return client
}
