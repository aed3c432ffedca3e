package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	syncs        *prometheus.CounterVec
	restarts     prometheus.Counter
	publishes    *prometheus.CounterVec
	dropped      prometheus.Counter
	commands     *prometheus.CounterVec
	sessionState prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethsensor_time_sync_attempts_total",
			Help: "Network time sync attempts by result.",
		}, []string{"result"}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethsensor_restarts_total",
			Help: "Restarts requested after unrecoverable time sync failure.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethsensor_mqtt_publishes_total",
			Help: "MQTT publishes by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethsensor_mqtt_inbound_dropped_total",
			Help: "Inbound messages dropped because the queue was full.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethsensor_commands_total",
			Help: "Handled inbound commands by name.",
		}, []string{"command"}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ethsensor_mqtt_session_state",
			Help: "Messaging session state (0 disconnected, 1 connected, 2 ready).",
		}),
	}
	reg.MustRegister(p.syncs, p.restarts, p.publishes, p.dropped, p.commands, p.sessionState)
	return p
}

func (p *Prometheus) SyncAttempt(result string) { p.syncs.WithLabelValues(result).Inc() }
func (p *Prometheus) Restart()                  { p.restarts.Inc() }
func (p *Prometheus) Publish(result string)     { p.publishes.WithLabelValues(result).Inc() }
func (p *Prometheus) InboundDropped()           { p.dropped.Inc() }
func (p *Prometheus) Command(name string)       { p.commands.WithLabelValues(name).Inc() }
func (p *Prometheus) SessionState(state int)    { p.sessionState.Set(float64(state)) }

var _ Recorder = (*Prometheus)(nil)
