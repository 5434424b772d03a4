package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/anyproto/any-mirror/app"
	"github.com/anyproto/any-mirror/app/debugstat"
	"github.com/anyproto/any-mirror/app/logger"
	"github.com/anyproto/any-mirror/config"
	"github.com/anyproto/any-mirror/feed"
	"github.com/anyproto/any-mirror/metric"
	"github.com/anyproto/any-mirror/mirror"
)

var log = logger.NewNamed("main")

var (
	flagConfigFile = flag.String("c", "", "path to config file, defaults are used when empty")
	flagBatchLog   = flag.String("l", "", "path to yaml batch log to replay")
	flagServe      = flag.Bool("s", false, "keep running after replay until a signal is received")
	flagVersion    = flag.Bool("v", false, "show version and exit")
	flagHelp       = flag.Bool("h", false, "show help and exit")
)

func main() {
	flag.Parse()

	if *flagVersion {
		fmt.Println(app.VersionDescription())
		return
	}
	if *flagHelp {
		flag.PrintDefaults()
		return
	}

	ctx := context.Background()
	a := new(app.App)

	conf := config.Default()
	if *flagConfigFile != "" {
		var err error
		if conf, err = config.NewFromFile(*flagConfigFile); err != nil {
			log.Fatal("can't open config file", zap.Error(err))
		}
	}
	conf.Log.ApplyGlobal()

	a.Register(conf)
	Bootstrap(a)
	if err := a.Start(ctx); err != nil {
		log.Fatal("can't start app", zap.Error(err))
	}
	log.Info("app started", zap.String("version", a.Version()))

	if *flagBatchLog != "" {
		if err := replay(ctx, a, *flagBatchLog); err != nil {
			log.Error("replay failed", zap.Error(err))
		}
	}

	if *flagServe {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
		sig := <-exit
		log.Info("received exit signal, stop app", zap.String("signal", fmt.Sprint(sig)))
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Fatal("close error", zap.Error(err))
	}
}

func Bootstrap(a *app.App) {
	a.Register(debugstat.New()).
		Register(metric.New()).
		Register(mirror.New()).
		Register(feed.New())
}

func replay(ctx context.Context, a *app.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	batches, err := feed.ReadBatchLog(f)
	if err != nil {
		return err
	}
	fd := a.MustComponent(feed.CName).(feed.Feed)
	for i, batch := range batches {
		if err = fd.Apply(ctx, batch); err != nil {
			log.Warn("batch not applied", zap.Int("batch", i), zap.Error(err))
		}
	}
	st := fd.Stats()
	log.Info("replay finished",
		zap.Int("batches", len(batches)),
		zap.Uint64("applied", st.Applied),
		zap.Uint64("dropped", st.Dropped),
		zap.Uint64("failed", st.Failed),
		zap.Bool("diverged", st.Diverged),
		zap.Int("docs", a.MustComponent(mirror.CName).(mirror.Service).Store().Len()),
	)
	out, err := yaml.Marshal(a.MustComponent(debugstat.CName).(debugstat.StatService).GetStat())
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
