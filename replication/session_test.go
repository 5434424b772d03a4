package replication

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyproto/any-mirror/docstore"
	"github.com/anyproto/any-mirror/document"
	"github.com/anyproto/any-mirror/idgen"
	"github.com/anyproto/any-mirror/observer"
	"github.com/anyproto/any-mirror/originals"
)

type fixture struct {
	*Session
	notifications [][]observer.Change
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	fx := &fixture{}
	fx.Session = NewSession(docstore.New(docstore.WithName("test")), opts...)
	fx.Store().Observe(observer.Query{}, observer.NotifyFunc(func(changes []observer.Change) {
		fx.notifications = append(fx.notifications, changes)
	}))
	return fx
}

func (fx *fixture) state() map[document.Id]document.Fields {
	res := make(map[document.Id]document.Fields)
	for _, doc := range fx.Store().Find(nil) {
		res[doc.Id] = doc.Fields
	}
	return res
}

func (fx *fixture) batch(t *testing.T, reset bool, msgs ...Message) {
	require.NoError(t, fx.BeginUpdate(len(msgs), reset))
	for _, msg := range msgs {
		require.NoError(t, fx.Update(msg))
	}
	require.NoError(t, fx.EndUpdate())
}

func TestSession_Scenario(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.Update(Added{Id: "1", Fields: document.Fields{"name": "a"}}))
	assert.Equal(t, map[document.Id]document.Fields{"1": {"name": "a"}}, fx.state())

	require.NoError(t, fx.Update(Changed{Id: "1", Fields: document.Fields{"name": "b", "age": document.Absent}}))
	assert.Equal(t, map[document.Id]document.Fields{"1": {"name": "b"}}, fx.state())

	require.NoError(t, fx.Update(Removed{Id: "1"}))
	assert.Empty(t, fx.state())

	err := fx.Update(Removed{Id: "1"})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ReasonExpectedExisting, pe.Reason)
	assert.Equal(t, KindRemoved, pe.Kind)
	assert.Equal(t, document.Id("1"), pe.Id)
}

func TestSession_Violations(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		fx := newFixture(t)
		fx.batch(t, false,
			Added{Id: "1", Fields: document.Fields{"name": "a"}},
			Added{Id: "2", Fields: document.Fields{"name": "b"}},
		)
		fx.notifications = nil
		return fx
	}
	for _, tc := range []struct {
		name   string
		msg    Message
		reason string
	}{
		{"added existing", Added{Id: "1", Fields: document.Fields{"name": "x"}}, ReasonUnexpectedExisting},
		{"removed absent", Removed{Id: "3"}, ReasonExpectedExisting},
		{"changed absent", Changed{Id: "3", Fields: document.Fields{"name": "x"}}, ReasonExpectedExisting},
		{"unrecognized", unknownMessage{id: "1"}, ReasonUnrecognized},
		{"nil", nil, ReasonUnrecognized},
		{"nil pointer", (*Removed)(nil), ReasonUnrecognized},
		{"empty id", Added{Id: "", Fields: document.Fields{}}, ReasonMalformedId},
		{"operator fields", Replace{Id: "1", Replacement: document.Fields{"$set": document.Fields{"a": 1}}}, ReasonOperatorFields},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fx := setup(t)
			before := fx.state()
			require.NoError(t, fx.BeginUpdate(1, false))
			err := fx.Update(tc.msg)
			assert.True(t, IsProtocolViolation(err))
			var pe *ProtocolError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.reason, pe.Reason)
			require.NoError(t, fx.EndUpdate())
			assert.Equal(t, before, fx.state())
			assert.Empty(t, fx.notifications)
		})
	}
}

func TestSession_MalformedId(t *testing.T) {
	s := NewSession(docstore.New(docstore.WithIdGenerator(idgen.NewUUID())))
	assert.True(t, IsProtocolViolation(s.Update(Added{Id: "1"})))
	id := s.Store().IdGenerator().NewId()
	require.NoError(t, s.Update(Added{Id: id, Fields: document.Fields{"a": 1}}))
	assert.True(t, s.Store().Exists(id))
}

func TestSession_Replace(t *testing.T) {
	t.Run("null on absent is idempotent", func(t *testing.T) {
		fx := newFixture(t)
		fx.batch(t, false, Added{Id: "1", Fields: document.Fields{"a": 1}})
		require.NoError(t, fx.Update(Replace{Id: "2"}))
		first := fx.state()
		require.NoError(t, fx.Update(Replace{Id: "2"}))
		assert.Equal(t, first, fx.state())
		assert.Equal(t, map[document.Id]document.Fields{"1": {"a": 1}}, first)
	})
	t.Run("null removes", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.Update(Added{Id: "1", Fields: document.Fields{"a": 1}}))
		require.NoError(t, fx.Update(Replace{Id: "1"}))
		assert.Empty(t, fx.state())
	})
	t.Run("inserts and overwrites", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.Update(Replace{Id: "1", Replacement: document.Fields{"a": 1, "b": 2}}))
		require.NoError(t, fx.Update(Replace{Id: "1", Replacement: document.Fields{"c": 3}}))
		assert.Equal(t, map[document.Id]document.Fields{"1": {"c": 3}}, fx.state())
	})
	t.Run("permissive policy keeps operator fields", func(t *testing.T) {
		fx := newFixture(t, WithReplacePolicy(ReplacePolicyPermissive))
		require.NoError(t, fx.Update(Replace{Id: "1", Replacement: document.Fields{"$inc": 1}}))
		assert.Equal(t, map[document.Id]document.Fields{"1": {"$inc": 1}}, fx.state())
	})
	t.Run("pointer messages", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.Update(&Replace{Id: "1", Replacement: document.Fields{"a": 1}}))
		require.NoError(t, fx.Update(&Changed{Id: "1", Fields: document.Fields{"b": 2}}))
		assert.Equal(t, map[document.Id]document.Fields{"1": {"a": 1, "b": 2}}, fx.state())
	})
}

func TestSession_Changed(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.Update(Added{Id: "1", Fields: document.Fields{"a": 1}}))
	fx.notifications = nil
	require.NoError(t, fx.Update(Changed{Id: "1"}))
	assert.Empty(t, fx.notifications)
	require.NoError(t, fx.Update(Changed{Id: "1", Fields: document.Fields{"a": document.Absent, "n": document.Fields{"x": 1}}}))
	assert.Equal(t, map[document.Id]document.Fields{"1": {"n": document.Fields{"x": 1}}}, fx.state())
	require.Len(t, fx.notifications, 1)
	assert.Equal(t, observer.KindChanged, fx.notifications[0][0].Kind)
}

func TestSession_Batch(t *testing.T) {
	t.Run("one notification", func(t *testing.T) {
		fx := newFixture(t)
		fx.batch(t, false,
			Added{Id: "1", Fields: document.Fields{"a": 1}},
			Added{Id: "2", Fields: document.Fields{"a": 2}},
			Changed{Id: "1", Fields: document.Fields{"a": 3}},
		)
		require.Len(t, fx.notifications, 1)
		assert.Len(t, fx.notifications[0], 2)
	})
	t.Run("net zero", func(t *testing.T) {
		fx := newFixture(t)
		fx.batch(t, false,
			Added{Id: "1", Fields: document.Fields{"a": 1}},
			Removed{Id: "1"},
			Added{Id: "1", Fields: document.Fields{"a": 1}},
			Removed{Id: "1"},
		)
		assert.Empty(t, fx.notifications)
	})
	t.Run("notifications wait for end", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.BeginUpdate(2, false))
		require.NoError(t, fx.Update(Added{Id: "1"}))
		require.NoError(t, fx.Update(Added{Id: "2"}))
		assert.Empty(t, fx.notifications)
		assert.True(t, fx.InBatch())
		require.NoError(t, fx.EndUpdate())
		assert.False(t, fx.InBatch())
		assert.Len(t, fx.notifications, 1)
	})
	t.Run("single message is not paused", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.BeginUpdate(1, false))
		require.NoError(t, fx.Update(Added{Id: "1"}))
		assert.Len(t, fx.notifications, 1)
		require.NoError(t, fx.EndUpdate())
		assert.Len(t, fx.notifications, 1)
	})
	t.Run("reset", func(t *testing.T) {
		fx := newFixture(t)
		fx.batch(t, false, Added{Id: "A"}, Added{Id: "B"})
		fx.batch(t, true, Added{Id: "C", Fields: document.Fields{"c": 1}})
		assert.Equal(t, map[document.Id]document.Fields{"C": {"c": 1}}, fx.state())
	})
	t.Run("reset restoring same state is silent", func(t *testing.T) {
		fx := newFixture(t)
		fx.batch(t, false, Added{Id: "A", Fields: document.Fields{"a": 1}})
		fx.notifications = nil
		fx.batch(t, true, Added{Id: "A", Fields: document.Fields{"a": 1}})
		assert.Empty(t, fx.notifications)
	})
	t.Run("state errors", func(t *testing.T) {
		fx := newFixture(t)
		assert.ErrorIs(t, fx.BeginUpdate(-1, false), ErrInvalidBatchSize)
		require.NoError(t, fx.BeginUpdate(2, false))
		assert.ErrorIs(t, fx.BeginUpdate(2, false), ErrBatchInProgress)
		require.NoError(t, fx.EndUpdate())
		assert.NoError(t, fx.EndUpdate())
		assert.False(t, fx.Store().ObserversPaused())
	})
	t.Run("outer pause is kept", func(t *testing.T) {
		fx := newFixture(t)
		fx.Store().PauseObservers()
		fx.batch(t, false, Added{Id: "1"})
		require.NoError(t, fx.Update(Added{Id: "2"}))
		fx.batch(t, false, Added{Id: "3"}, Added{Id: "4"})
		assert.NoError(t, fx.EndUpdate())
		assert.True(t, fx.Store().ObserversPaused())
		assert.Empty(t, fx.notifications)

		fx.Store().ResumeObservers()
		assert.False(t, fx.Store().ObserversPaused())
		require.Len(t, fx.notifications, 1)
		assert.Len(t, fx.notifications[0], 4)
	})
}

func TestSession_Originals(t *testing.T) {
	t.Run("captures pre-mutation state", func(t *testing.T) {
		fx := newFixture(t)
		fx.batch(t, false, Added{Id: "x", Fields: document.Fields{"n": document.Fields{"a": 1}}})
		before := fx.state()

		fx.SaveOriginals()
		require.NoError(t, fx.Update(Changed{Id: "x", Fields: document.Fields{"n": 2}}))
		require.NoError(t, fx.Update(Removed{Id: "x"}))
		require.NoError(t, fx.Update(Added{Id: "y"}))
		frame, err := fx.RetrieveOriginals()
		require.NoError(t, err)

		assert.Equal(t, []document.Id{"x", "y"}, frame.Ids())
		orig, ok := frame.Original("x")
		require.True(t, ok)
		require.NotNil(t, orig)
		assert.Equal(t, document.Fields{"n": document.Fields{"a": 1}}, orig.Fields)
		orig, ok = frame.Original("y")
		require.True(t, ok)
		assert.Nil(t, orig)

		fx.notifications = nil
		require.NoError(t, fx.Revert(frame))
		assert.Equal(t, before, fx.state())
		assert.Len(t, fx.notifications, 1)
	})
	t.Run("revert skips source checks", func(t *testing.T) {
		s := NewSession(docstore.New(docstore.WithIdGenerator(idgen.NewUUID())), WithReplacePolicy(ReplacePolicyStrict))
		require.NoError(t, s.Store().Insert(document.New("local", document.Fields{"$x": 1})))
		s.SaveOriginals()
		require.NoError(t, s.Store().Insert(document.New("not-a-uuid", document.Fields{"a": 1})))
		require.NoError(t, s.Store().Replace("local", document.Fields{"y": 2}))
		frame, err := s.RetrieveOriginals()
		require.NoError(t, err)

		require.NoError(t, s.Revert(frame))
		assert.False(t, s.Store().Exists("not-a-uuid"))
		doc, ok := s.FindOne("local")
		require.True(t, ok)
		assert.Equal(t, document.Fields{"$x": 1}, doc.Fields)
		assert.False(t, s.InBatch())
	})
	t.Run("revert messages", func(t *testing.T) {
		frame := originals.Frame{
			"b": nil,
			"a": &document.Document{Id: "a", Fields: document.Fields{"k": "v"}},
		}
		assert.Equal(t, []Message{
			Replace{Id: "a", Replacement: document.Fields{"k": "v"}},
			Replace{Id: "b"},
		}, RevertMessages(frame))
	})
	t.Run("nested frames", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.Update(Added{Id: "x", Fields: document.Fields{"v": 0}}))
		fx.SaveOriginals()
		require.NoError(t, fx.Update(Changed{Id: "x", Fields: document.Fields{"v": 1}}))
		fx.SaveOriginals()
		require.NoError(t, fx.Update(Changed{Id: "x", Fields: document.Fields{"v": 2}}))
		inner, err := fx.RetrieveOriginals()
		require.NoError(t, err)
		require.NoError(t, fx.Update(Changed{Id: "x", Fields: document.Fields{"v": 3}}))
		outer, err := fx.RetrieveOriginals()
		require.NoError(t, err)

		assert.Equal(t, document.Fields{"v": 1}, inner["x"].Fields)
		assert.Equal(t, document.Fields{"v": 0}, outer["x"].Fields)
	})
	t.Run("underflow", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.RetrieveOriginals()
		assert.ErrorIs(t, err, originals.ErrLedgerUnderflow)
	})
}

// model applies messages to a plain map with the same interpretation rules
type model map[document.Id]document.Fields

func (m model) apply(msg Message) {
	switch v := msg.(type) {
	case Replace:
		if v.Replacement == nil {
			delete(m, v.Id)
		} else {
			m[v.Id] = v.Replacement.Copy()
		}
	case Added:
		m[v.Id] = v.Fields.Copy()
	case Removed:
		delete(m, v.Id)
	case Changed:
		fields := m[v.Id].Copy()
		for k, val := range v.Fields {
			if document.IsAbsent(val) {
				delete(fields, k)
			} else {
				fields[k] = val
			}
		}
		m[v.Id] = fields
	}
}

func randomFields(r *rand.Rand, allowAbsent bool) document.Fields {
	fields := document.Fields{}
	n := r.Intn(4)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("f%d", r.Intn(5))
		if allowAbsent && r.Intn(3) == 0 {
			fields[key] = document.Absent
		} else {
			fields[key] = r.Intn(10)
		}
	}
	return fields
}

func randomMessage(r *rand.Rand, m model) Message {
	id := document.Id(fmt.Sprintf("id%d", r.Intn(8)))
	_, exists := m[id]
	switch r.Intn(3) {
	case 0:
		if r.Intn(4) == 0 {
			return Replace{Id: id}
		}
		return Replace{Id: id, Replacement: randomFields(r, false)}
	case 1:
		if exists {
			return Removed{Id: id}
		}
		return Added{Id: id, Fields: randomFields(r, false)}
	default:
		if exists {
			return Changed{Id: id, Fields: randomFields(r, true)}
		}
		return Added{Id: id, Fields: randomFields(r, false)}
	}
}

func TestSession_ModelEquivalence(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		fx := newFixture(t)
		ref := model{}
		for b := 0; b < 10; b++ {
			reset := r.Intn(8) == 0
			if reset {
				ref = model{}
			}
			size := r.Intn(6)
			require.NoError(t, fx.BeginUpdate(size, reset))
			for j := 0; j < size; j++ {
				msg := randomMessage(r, ref)
				require.NoError(t, fx.Update(msg))
				ref.apply(msg)
			}
			require.NoError(t, fx.EndUpdate())
			got := fx.state()
			require.Len(t, got, len(ref))
			for id, fields := range ref {
				require.Contains(t, got, id)
				require.True(t, fields.Equal(got[id]), "%s: %v != %v", id, fields, got[id])
			}
		}
	}
}

type unknownMessage struct {
	id document.Id
}

func (m unknownMessage) DocumentId() document.Id { return m.id }
