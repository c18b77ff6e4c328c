// Package metrics records squery statement statistics as Prometheus histograms.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	errMetricNotRegistered = errors.New("metric not registered")
	errLabelCount          = errors.New("labels must be key/value pairs")
)

type logger interface {
	Errorf(format string, args ...any)
}

// Manager owns the histograms an application registered and records values on them.
type Manager struct {
	registerer prometheus.Registerer
	logger     logger

	mu         sync.RWMutex
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewManager returns a Manager registering its collectors with reg. A nil reg
// uses the default Prometheus registry.
func NewManager(reg prometheus.Registerer, logger logger) *Manager {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Manager{
		registerer: reg,
		logger:     logger,
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// NewHistogram registers a histogram whose label names are fixed up front.
func (m *Manager) NewHistogram(name, desc string, labelNames []string, buckets ...float64) error {
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    desc,
		Buckets: buckets,
	}, labelNames)

	if err := m.registerer.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}

		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return err
		}

		h = existing
	}

	m.mu.Lock()
	m.histograms[name] = h
	m.labels[name] = labelNames
	m.mu.Unlock()

	return nil
}

// RecordHistogram observes value on the named histogram. labels alternate between
// label name and label value.
func (m *Manager) RecordHistogram(_ context.Context, name string, value float64, labels ...string) {
	if err := m.recordHistogram(name, value, labels...); err != nil && m.logger != nil {
		m.logger.Errorf("error recording histogram %q: %v", name, err)
	}
}

func (m *Manager) recordHistogram(name string, value float64, labels ...string) error {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", errMetricNotRegistered, name)
	}

	if len(labels)%2 != 0 {
		return errLabelCount
	}

	pl := make(prometheus.Labels, len(labels)/2)
	for i := 0; i < len(labels); i += 2 {
		pl[labels[i]] = labels[i+1]
	}

	o, err := h.GetMetricWith(pl)
	if err != nil {
		return err
	}

	o.Observe(value)

	return nil
}
