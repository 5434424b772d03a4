package debugstat

import (
	"context"

	"github.com/anyproto/any-mirror/app"
)

// NewNoOp returns a service that drops providers, for binaries without stats
func NewNoOp() StatService {
	return NoOpStatService{}
}

type NoOpStatService struct{}

func (n NoOpStatService) Init(a *app.App) (err error)           { return nil }
func (n NoOpStatService) Name() (name string)                   { return CName }
func (n NoOpStatService) Run(ctx context.Context) (err error)   { return nil }
func (n NoOpStatService) Close(ctx context.Context) (err error) { return nil }
func (n NoOpStatService) AddProvider(provider StatProvider)     {}
func (n NoOpStatService) RemoveProvider(provider StatProvider)  {}
func (n NoOpStatService) GetStat() StatSummary                  { return StatSummary{} }
