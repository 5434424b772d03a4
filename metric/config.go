package metric

type configSource interface {
	GetMetric() Config
}

type Config struct {
	// Addr enables the /metrics http endpoint when not empty
	Addr string `yaml:"addr"`
}
