package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyproto/any-mirror/app"
	"github.com/anyproto/any-mirror/app/logger"
)

const testYaml = `
log:
  defaultLevel: debug
  levels:
    - name: mirror.observer
      level: warn
mirror:
  name: demo
  idStrategy: uuid
  snapshotPath: /tmp/demo.db
metric:
  addr: 127.0.0.1:8089
`

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(testYaml), 0o600))
	c, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.GetLog().DefaultLevel)
	assert.Equal(t, []logger.NamedLevel{{Name: "mirror.observer", Level: "warn"}}, c.GetLog().Levels)
	assert.Equal(t, "demo", c.GetMirror().Name)
	assert.Equal(t, "uuid", c.GetMirror().IdStrategy)
	assert.Equal(t, "/tmp/demo.db", c.GetMirror().SnapshotPath)
	assert.Equal(t, "127.0.0.1:8089", c.GetMetric().Addr)
	// defaults survive for omitted keys
	assert.Equal(t, "strict", c.GetMirror().ReplacePolicy)
	assert.Equal(t, 1024, c.GetFeed().QueueSize)

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	_, err := Parse([]byte("mirror: [1, 2]"))
	assert.Error(t, err)

	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestConfig_Component(t *testing.T) {
	a := new(app.App)
	c := Default()
	a.Register(c)
	assert.Equal(t, CName, c.Name())
	assert.Same(t, c, a.MustComponent(CName))
}
