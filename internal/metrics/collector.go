package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineStats provides the collector access to live pipeline state.
type PipelineStats interface {
	Running() int
	QueuedScenes() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	stats PipelineStats

	runningTasks    *prometheus.Desc
	queuedScenes    *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool is nil when tasks are kept in a file.
func NewCollector(pool *pgxpool.Pool, stats PipelineStats) *Collector {
	return &Collector{
		pool:  pool,
		stats: stats,
		runningTasks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tasks_running"),
			"Generation tasks currently running.",
			nil, nil,
		),
		queuedScenes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scenes_queued"),
			"Scenes waiting for a worker.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runningTasks
	ch <- c.queuedScenes
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var running, queued float64
	if c.stats != nil {
		running = float64(c.stats.Running())
		queued = float64(c.stats.QueuedScenes())
	}
	ch <- prometheus.MustNewConstMetric(c.runningTasks, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(c.queuedScenes, prometheus.GaugeValue, queued)

	var total, acquired float64
	if c.pool != nil {
		stat := c.pool.Stat()
		total = float64(stat.TotalConns())
		acquired = float64(stat.AcquiredConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
}
