package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatt_messages_posted_total",
		Help: "Messages appended to the log, by kind.",
	}, []string{"kind"})

	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatt_messages_deleted_total",
		Help: "Messages removed by their author or an owner.",
	})

	BlobsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatt_blobs_written_total",
		Help: "New objects written to blob storage.",
	})

	AlertsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatt_alerts_pushed_total",
		Help: "System alerts appended to the log.",
	})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatt_online_users",
		Help: "Users inside the presence window at the last poll.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
