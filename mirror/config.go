package mirror

import (
	"fmt"

	"github.com/anyproto/any-mirror/replication"
)

type configGetter interface {
	GetMirror() Config
}

type Config struct {
	Name string `yaml:"name"`
	// IdStrategy is one of random, uuid or lexid
	IdStrategy string `yaml:"idStrategy"`
	// ReplacePolicy is strict or permissive
	ReplacePolicy string `yaml:"replacePolicy"`
	// SnapshotPath enables warm start from an any-store file
	SnapshotPath string `yaml:"snapshotPath"`
}

func (c Config) replacePolicy() (replication.ReplacePolicy, error) {
	switch c.ReplacePolicy {
	case "", "strict":
		return replication.ReplacePolicyStrict, nil
	case "permissive":
		return replication.ReplacePolicyPermissive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownReplacePolicy, c.ReplacePolicy)
	}
}
