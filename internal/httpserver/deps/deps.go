package deps

import (
	"time"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/scheduler"
	"github.com/MrSnakeDoc/tenders/internal/store"
	redisstore "github.com/MrSnakeDoc/tenders/internal/store/redis"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Clock     clock.Clock // for testing, defaults to the system clock

	AllowedCIDRS []string // IPs allowed to access operational endpoints
	TrustProxy   bool     // true if running behind a trusted reverse proxy
	RateBurst    int      // per-client burst for /api
	RatePerMin   int      // per-client refill for /api

	Storage string      // backend name reported by /infra
	Store   store.Store // tenders and saved queries
	Cache   *redisstore.Store

	SearchLoop    *scheduler.Loop // nil when ingestion is not scheduled
	RetentionLoop *scheduler.Loop
}

// Now returns the current time from Clock, or the system time.
func (d Deps) Now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now().UTC()
}

// Loops returns the configured background loops.
func (d Deps) Loops() []*scheduler.Loop {
	var loops []*scheduler.Loop
	for _, l := range []*scheduler.Loop{d.SearchLoop, d.RetentionLoop} {
		if l != nil {
			loops = append(loops, l)
		}
	}
	return loops
}
