// Package metrics 提供发现、打洞与中继的 prometheus 指标
//
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "punchnet"

// 标签取值
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeLocalhost = "localhost"

	ResultIntroduced = "introduced"
	ResultUnknown    = "unknown_host"
	ResultInvalid    = "invalid"
)

// Metrics 指标集合
type Metrics struct {
	probesSent        prometheus.Counter
	sessions          prometheus.Gauge
	datagramsDropped  *prometheus.CounterVec
	punchesStarted    prometheus.Counter
	punchesResolved   *prometheus.CounterVec
	registrations     prometheus.Counter
	connectFailures   *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	relayRegistered   prometheus.Counter
	relayIntroduced   *prometheus.CounterVec
	relayHosts        prometheus.Gauge
}

// New 创建并注册指标，reg 为 nil 时只创建不注册
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "probes_sent_total",
			Help:      "Number of LAN discovery probes broadcast.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "sessions",
			Help:      "Number of discovered sessions at last change.",
		}),
		datagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "datagrams_dropped_total",
			Help:      "Number of discovery datagrams dropped.",
		}, []string{"reason"}),
		punchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "punch",
			Name:      "started_total",
			Help:      "Number of connection attempts.",
		}),
		punchesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "punch",
			Name:      "resolved_total",
			Help:      "Number of connection attempts by how the target endpoint was chosen.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "punch",
			Name:      "registrations_total",
			Help:      "Number of registrations sent to the relay.",
		}),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "punch",
			Name:      "connect_failures_total",
			Help:      "Number of failed connection attempts.",
		}, []string{"reason"}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "punch",
			Name:      "connections_active",
			Help:      "Number of bound connections.",
		}),
		relayRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "registrations_total",
			Help:      "Number of host registrations received.",
		}),
		relayIntroduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "introductions_total",
			Help:      "Number of introduction requests.",
		}, []string{"result"}),
		relayHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "hosts",
			Help:      "Number of registered host entries.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.probesSent, m.sessions, m.datagramsDropped,
			m.punchesStarted, m.punchesResolved, m.registrations,
			m.connectFailures, m.connectionsActive,
			m.relayRegistered, m.relayIntroduced, m.relayHosts,
		)
	}
	return m
}

// ProbeSent 记录一次探测广播
func (m *Metrics) ProbeSent() {
	if m != nil {
		m.probesSent.Inc()
	}
}

// SessionsChanged 记录会话数
func (m *Metrics) SessionsChanged(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

// DatagramDropped 记录丢弃的发现数据报
func (m *Metrics) DatagramDropped(reason string) {
	if m != nil {
		m.datagramsDropped.WithLabelValues(reason).Inc()
	}
}

// PunchStarted 记录一次连接尝试
func (m *Metrics) PunchStarted() {
	if m != nil {
		m.punchesStarted.Inc()
	}
}

// PunchResolved 记录目标端点的确定方式
func (m *Metrics) PunchResolved(outcome string) {
	if m != nil {
		m.punchesResolved.WithLabelValues(outcome).Inc()
	}
}

// Registered 记录一次向中继登记
func (m *Metrics) Registered() {
	if m != nil {
		m.registrations.Inc()
	}
}

// ConnectFailed 记录连接失败
func (m *Metrics) ConnectFailed(reason string) {
	if m != nil {
		m.connectFailures.WithLabelValues(reason).Inc()
	}
}

// ConnectionsActive 记录已绑定连接数
func (m *Metrics) ConnectionsActive(n int) {
	if m != nil {
		m.connectionsActive.Set(float64(n))
	}
}

// RelayRegistration 记录中继收到的登记
func (m *Metrics) RelayRegistration() {
	if m != nil {
		m.relayRegistered.Inc()
	}
}

// RelayIntroduction 记录引荐请求结果
func (m *Metrics) RelayIntroduction(result string) {
	if m != nil {
		m.relayIntroduced.WithLabelValues(result).Inc()
	}
}

// RelayHosts 记录中继主机表大小
func (m *Metrics) RelayHosts(n int) {
	if m != nil {
		m.relayHosts.Set(float64(n))
	}
}
