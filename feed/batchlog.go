package feed

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/anyproto/any-mirror/document"
	"github.com/anyproto/any-mirror/replication"
)

var ErrUnknownMessage = errors.New("feed: unknown message type")

type logBatch struct {
	Reset    bool         `yaml:"reset"`
	Messages []logMessage `yaml:"messages"`
}

type logMessage struct {
	Msg         string         `yaml:"msg"`
	Id          string         `yaml:"id"`
	Fields      map[string]any `yaml:"fields"`
	Cleared     []string       `yaml:"cleared"`
	Replacement map[string]any `yaml:"replacement"`
}

// ReadBatchLog decodes a yaml list of batches
func ReadBatchLog(r io.Reader) (batches []Batch, err error) {
	var raw []logBatch
	if err = yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("feed: decode batch log: %w", err)
	}
	batches = make([]Batch, 0, len(raw))
	for i, lb := range raw {
		batch := Batch{Reset: lb.Reset, Messages: make([]replication.Message, 0, len(lb.Messages))}
		for j, lm := range lb.Messages {
			msg, err := lm.message()
			if err != nil {
				return nil, fmt.Errorf("batch %d message %d: %w", i, j, err)
			}
			batch.Messages = append(batch.Messages, msg)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func (lm logMessage) message() (replication.Message, error) {
	id := document.Id(lm.Id)
	switch lm.Msg {
	case "added":
		return replication.Added{Id: id, Fields: lm.Fields}, nil
	case "changed":
		fields := make(document.Fields, len(lm.Fields)+len(lm.Cleared))
		for k, v := range lm.Fields {
			fields[k] = v
		}
		for _, k := range lm.Cleared {
			fields[k] = document.Absent
		}
		return replication.Changed{Id: id, Fields: fields}, nil
	case "removed":
		return replication.Removed{Id: id}, nil
	case "replace":
		if lm.Replacement == nil {
			return replication.Replace{Id: id}, nil
		}
		return replication.Replace{Id: id, Replacement: lm.Replacement}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, lm.Msg)
	}
}
