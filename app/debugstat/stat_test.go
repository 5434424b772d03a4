package debugstat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyproto/any-mirror/app"
)

type testProvider struct {
	id, tp string
	value  int
}

func (p testProvider) ProvideStat() any { return p.value }
func (p testProvider) StatId() string   { return p.id }
func (p testProvider) StatType() string { return p.tp }

func TestStatService(t *testing.T) {
	a := new(app.App)
	s := New()
	a.Register(s)
	require.NoError(t, a.Start(context.Background()))
	defer func() {
		require.NoError(t, a.Close(context.Background()))
	}()

	s.AddProvider(testProvider{id: "b", tp: "feed", value: 2})
	s.AddProvider(testProvider{id: "a", tp: "feed", value: 1})
	s.AddProvider(testProvider{id: "a", tp: "cache", value: 3})
	// same type and id replaces
	s.AddProvider(testProvider{id: "a", tp: "cache", value: 4})

	assert.Equal(t, StatSummary{Stats: []StatType{
		{Type: "cache", Values: []StatValue{{Key: "a", Value: 4}}},
		{Type: "feed", Values: []StatValue{{Key: "a", Value: 1}, {Key: "b", Value: 2}}},
	}}, s.GetStat())

	s.RemoveProvider(testProvider{id: "a", tp: "cache"})
	assert.Len(t, s.GetStat().Stats, 1)
}

func TestNoOp(t *testing.T) {
	s := NewNoOp()
	s.AddProvider(testProvider{id: "a", tp: "feed"})
	assert.Empty(t, s.GetStat().Stats)
	assert.Equal(t, CName, s.Name())
}
