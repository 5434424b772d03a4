package feed

type configGetter interface {
	GetFeed() Config
}

type Config struct {
	// QueueSize limits pending batches, Push blocks when the queue is full
	QueueSize int `yaml:"queueSize"`
}
