package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetLevel(t *testing.T) {
	t.Run("first match wins", func(t *testing.T) {
		SetNamedLevels([]NamedLevel{
			{Name: "mirror", Level: "debug"},
			{Name: "mirror*", Level: "info"},
			{Name: "mirror.feed", Level: "warn"},
			{Name: "*", Level: "fatal"},
		})
		assert.Equal(t, zap.DebugLevel, getLevel("mirror").Level())
		assert.Equal(t, zap.InfoLevel, getLevel("mirror.session").Level())
		assert.Equal(t, zap.InfoLevel, getLevel("mirror.feed").Level())
		assert.Equal(t, zap.FatalLevel, getLevel("snapshot").Level())
	})
	t.Run("suffix glob", func(t *testing.T) {
		SetNamedLevels([]NamedLevel{
			{Name: "mirror", Level: "info"},
			{Name: "*.feed", Level: "warn"},
			{Name: "*", Level: "fatal"},
		})
		assert.Equal(t, zap.InfoLevel, getLevel("mirror").Level())
		assert.Equal(t, zap.WarnLevel, getLevel("mirror.feed").Level())
		assert.Equal(t, zap.FatalLevel, getLevel("random").Level())
	})
	t.Run("invalid levels are skipped", func(t *testing.T) {
		SetNamedLevels([]NamedLevel{
			{Name: "*", Level: "invalid"},
			{Name: "mirror", Level: "info"},
			{Name: "b", Level: "invalid"},
		})
		assert.Equal(t, zap.InfoLevel, getLevel("mirror").Level())
		assert.Equal(t, logger.Level(), getLevel("b").Level())
	})
}

func TestLevelsFromStr(t *testing.T) {
	levels := LevelsFromStr("mirror=DEBUG; feed*=WARN;ERROR;bad=nope")
	assert.Equal(t, []NamedLevel{
		{Name: "mirror", Level: "DEBUG"},
		{Name: "feed*", Level: "WARN"},
		{Name: "*", Level: "ERROR"},
	}, levels)
}

func TestCtxWithFields(t *testing.T) {
	ctx := CtxWithFields(context.Background(), zap.String("session", "s1"))
	ctx = CtxWithFields(ctx, zap.Int("batch", 2))
	fields := CtxGetFields(ctx)
	assert.Len(t, fields, 2)
	assert.Equal(t, "session", fields[0].Key)
	assert.Equal(t, "batch", fields[1].Key)
	assert.Empty(t, CtxGetFields(context.Background()))
}

func TestNewNamed(t *testing.T) {
	l1 := NewNamed("mirror.test")
	l2 := NewNamed("mirror.test")
	assert.Same(t, l1.Logger, l2.Logger)
	assert.NotPanics(t, func() {
		l1.InfoCtx(CtxWithFields(context.Background(), zap.String("k", "v")), "message")
	})
}
