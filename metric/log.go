package metric

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anyproto/any-mirror/document"
)

func Mirror(val string) zap.Field {
	return zap.String("mirror", val)
}

func DocId(val document.Id) zap.Field {
	return zap.String("docId", string(val))
}

func BatchSize(val int) zap.Field {
	return zap.Int("batchSize", val)
}

func Reset(val bool) zap.Field {
	return zap.Bool("reset", val)
}

func QueueDur(val time.Duration) zap.Field {
	return zap.Int64("queueMs", val.Milliseconds())
}

func TotalDur(val time.Duration) zap.Field {
	return zap.Int64("totalMs", val.Milliseconds())
}

func (m *metric) BatchLog(ctx context.Context, fields ...zap.Field) {
	m.batchLog.InfoCtx(ctx, "", fields...)
}
