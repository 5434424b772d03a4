// Package idgen provides document id generation strategies.
//
// A store picks one Generator at construction time; the generator both mints
// new ids for local inserts and decides whether an incoming id is well-formed.
package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/anyproto/lexid"
	"github.com/google/uuid"

	"github.com/anyproto/any-mirror/document"
)

var ErrUnknownStrategy = errors.New("idgen: unknown strategy")

type Strategy string

const (
	StrategyRandom Strategy = "random"
	StrategyUUID   Strategy = "uuid"
	StrategyLexId  Strategy = "lexid"
)

type Generator interface {
	// NewId returns a fresh id
	NewId() document.Id
	// Valid reports whether id is well-formed for this generator
	Valid(id document.Id) bool
}

// New returns a generator for the given strategy, empty meaning StrategyRandom.
func New(strategy Strategy) (Generator, error) {
	switch strategy {
	case "", StrategyRandom:
		return NewRandom(), nil
	case StrategyUUID:
		return NewUUID(), nil
	case StrategyLexId:
		return NewLexId(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

const (
	randomChars  = "23456789ABCDEFGHJKLMNPQRSTWXYZabcdefghijkmnopqrstuvwxyz"
	randomLength = 17
)

type random struct{}

// NewRandom generates 17 character ids from an unambiguous alphabet.
// Any non-empty id is accepted as valid.
func NewRandom() Generator {
	return random{}
}

func (random) NewId() document.Id {
	var (
		b   strings.Builder
		max = big.NewInt(int64(len(randomChars)))
	)
	b.Grow(randomLength)
	for i := 0; i < randomLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Errorf("idgen: read random: %w", err))
		}
		b.WriteByte(randomChars[n.Int64()])
	}
	return document.Id(b.String())
}

func (random) Valid(id document.Id) bool {
	return id != ""
}

type uuidGenerator struct{}

func NewUUID() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) NewId() document.Id {
	return document.Id(uuid.NewString())
}

func (uuidGenerator) Valid(id document.Id) bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// lexIdGenerator mints ids that sort in creation order
type lexIdGenerator struct {
	next func(prev string) string
	mu   sync.Mutex
	last string
}

func NewLexId() Generator {
	lex := lexid.Must(lexid.CharsAllNoEscape, 4, 100)
	return &lexIdGenerator{next: lex.Next}
}

func (g *lexIdGenerator) NewId() document.Id {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = g.next(g.last)
	return document.Id(g.last)
}

func (g *lexIdGenerator) Valid(id document.Id) bool {
	return id != ""
}
