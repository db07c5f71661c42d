package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/conf"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/metrics"
)

type Factory struct {
	config     conf.Config
	lock       sync.Mutex
	registry   *prometheus.Registry
	httpServer *http.Server
	started    bool
}

func NewFactory(config conf.Config) *Factory {
	return &Factory{config: config, registry: prometheus.NewRegistry()}
}

var _ metrics.Factory = &Factory{}

func (f *Factory) CreateCounter(name string, description string) (metrics.Counter, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		return nil, errors.New("not started")
	}
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pqstream",
		Name:      name,
		Help:      description,
	})
	if err := f.registry.Register(counter); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Counter{pCounter: counter}, nil
}

func (f *Factory) Start() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.started {
		return errors.New("already started")
	}
	metricsListenAddr := conf.DefaultMetricsAddr
	if f.config.MetricsAddr != "" {
		metricsListenAddr = f.config.MetricsAddr
	}
	f.httpServer = &http.Server{Addr: metricsListenAddr, Handler: f.Handler()}
	f.started = true
	go func(srv *http.Server) {
		log.Debugf("starting prometheus http server on address %s", metricsListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("prometheus http export server failed to listen %v", err)
		}
	}(f.httpServer)
	return nil
}

func (f *Factory) Stop() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		return errors.New("not started")
	}
	f.started = false
	if f.httpServer != nil {
		return errors.WithStack(f.httpServer.Close())
	}
	return nil
}

// Handler serves the counters created by this factory in the Prometheus text format.
func (f *Factory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{})
}

type Counter struct {
	pCounter prometheus.Counter
}

func (c *Counter) Inc() {
	c.pCounter.Inc()
}

func (c *Counter) Add(delta float64) {
	c.pCounter.Add(delta)
}
