package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Capeling/globed2-joeyy/internal/core/event"
)

// Metrics holds the server's prometheus collectors. They are fed from the
// event bus so handlers never touch them directly.
type Metrics struct {
	Sessions        prometheus.Gauge
	Handshakes      prometheus.Counter
	Logins          *prometheus.CounterVec
	PacketsRejected *prometheus.CounterVec
	PlayersOnline   prometheus.GaugeFunc
}

// New creates the collectors, registers them on reg and subscribes them to
// bus. playersOnline is sampled on every scrape.
func New(reg prometheus.Registerer, bus *event.Bus, playersOnline func() float64) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gameserver",
			Name:      "sessions_open",
			Help:      "Open client connections, authenticated or not.",
		}),
		Handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gameserver",
			Name:      "handshakes_total",
			Help:      "Completed crypto handshakes.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gameserver",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		PacketsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gameserver",
			Name:      "packets_rejected_total",
			Help:      "Inbound packets refused by the dispatcher, by reason.",
		}, []string{"reason"}),
		PlayersOnline: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gameserver",
			Name:      "players_online",
			Help:      "Authenticated players.",
		}, playersOnline),
	}
	reg.MustRegister(m.Sessions, m.Handshakes, m.Logins, m.PacketsRejected, m.PlayersOnline)

	event.Subscribe(bus, func(event.SessionOpened) { m.Sessions.Inc() })
	event.Subscribe(bus, func(event.SessionClosed) { m.Sessions.Dec() })
	event.Subscribe(bus, func(event.HandshakeCompleted) { m.Handshakes.Inc() })
	event.Subscribe(bus, func(event.PlayerLoggedIn) { m.Logins.WithLabelValues("success").Inc() })
	event.Subscribe(bus, func(ev event.LoginRejected) { m.Logins.WithLabelValues(ev.Reason).Inc() })
	event.Subscribe(bus, func(ev event.PacketRejected) { m.PacketsRejected.WithLabelValues(ev.Reason).Inc() })
	return m
}
