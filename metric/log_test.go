package metric

import (
	"context"
	"testing"
	"time"

	"github.com/anyproto/any-mirror/app/logger"
)

func TestLog(t *testing.T) {
	m := &metric{batchLog: logger.NewNamed("batchLog")}
	m.BatchLog(context.Background(), Mirror("m"), BatchSize(3), Reset(false), TotalDur(time.Millisecond))
}
