// Package debugstat collects runtime state of components for diagnostics.
package debugstat

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/anyproto/any-mirror/app"
)

const CName = "common.debugstat"

type StatProvider interface {
	ProvideStat() any
	StatId() string
	StatType() string
}

type StatService interface {
	app.ComponentRunnable
	AddProvider(provider StatProvider)
	RemoveProvider(provider StatProvider)
	GetStat() StatSummary
}

func New() StatService {
	return &statService{}
}

type statService struct {
	providers map[string]StatProvider
	sync.Mutex
}

func (s *statService) AddProvider(provider StatProvider) {
	s.Lock()
	defer s.Unlock()
	s.providers[provId(provider)] = provider
}

func provId(provider StatProvider) string {
	return provider.StatType() + "-" + provider.StatId()
}

func (s *statService) RemoveProvider(provider StatProvider) {
	s.Lock()
	defer s.Unlock()
	delete(s.providers, provId(provider))
}

func (s *statService) Init(a *app.App) (err error) {
	s.providers = map[string]StatProvider{}
	return nil
}

func (s *statService) Name() (name string) {
	return CName
}

// GetStat collects values of every provider, types and keys are sorted
func (s *statService) GetStat() (st StatSummary) {
	s.Lock()
	byType := map[string][]StatProvider{}
	for _, prov := range s.providers {
		byType[prov.StatType()] = append(byType[prov.StatType()], prov)
	}
	s.Unlock()

	for tp, provs := range byType {
		stType := StatType{Type: tp}
		for _, prov := range provs {
			stType.Values = append(stType.Values, StatValue{
				Key:   prov.StatId(),
				Value: prov.ProvideStat(),
			})
		}
		slices.SortFunc(stType.Values, func(a, b StatValue) int {
			return cmp.Compare(a.Key, b.Key)
		})
		st.Stats = append(st.Stats, stType)
	}
	slices.SortFunc(st.Stats, func(a, b StatType) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return st
}

func (s *statService) Run(ctx context.Context) (err error) {
	return nil
}

func (s *statService) Close(ctx context.Context) (err error) {
	return nil
}
