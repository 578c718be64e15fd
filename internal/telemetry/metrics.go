package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики планировщика и публикации.
// Регистрируются в default registry, отдаются через /metrics.
var (
	// ReconcilePasses — количество reconciliation-проходов по триггерам.
	ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kreativposter_reconcile_passes_total",
		Help: "Total reconciliation passes, by trigger (tick, wake, cron, api)",
	}, []string{"trigger"})

	// PostsPublished — исходы публикации постов.
	PostsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kreativposter_posts_published_total",
		Help: "Total posts that reached a terminal status, by outcome",
	}, []string{"outcome"})

	// PlatformPublishes — исходы публикаций по отдельным платформам.
	PlatformPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kreativposter_platform_publishes_total",
		Help: "Total per-platform publish attempts, by platform and outcome",
	}, []string{"platform", "outcome"})

	// PublishDuration — длительность публикации одного поста (fan-out целиком).
	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kreativposter_publish_duration_seconds",
		Help:    "Duration of a full post publish (all platforms)",
		Buckets: prometheus.DefBuckets,
	})

	// StaleLeases — перехваченные просроченные lease.
	StaleLeases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kreativposter_stale_leases_reclaimed_total",
		Help: "Total publishing leases reclaimed after expiry",
	})

	// NotificationsDropped — уведомления, отброшенные из-за переполнения подписчика.
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kreativposter_notifications_dropped_total",
		Help: "Total notifications dropped because a subscriber buffer was full",
	})
)
