// R9CTL - A TCP query client and scan scheduler for lock-in amplifiers
// attached to an RHK R9 STM controller.
// Copyright (C) 2023 R9CTL Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"r9ctl/config"
	"r9ctl/lockin"
	"r9ctl/monitor"
	"r9ctl/queue"
	"r9ctl/scan"
	"r9ctl/sim"
	"r9ctl/task"
)

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

// Poller takes readings from the instrument and fans them out to the
// encoder, the metrics counters and the optional Redis publisher. Each
// reading is an independent connect/query/close exchange.
type Poller struct {
	client *lockin.Client
	pub    *queue.Publisher
	log    *logrus.Logger
}

// Poll performs one exchange and reports its outcome.
func (p *Poller) Poll(ctx context.Context) (Reading, error) {
	start := time.Now()
	reply, err := p.client.Query(ctx)
	elapsed := time.Since(start)

	stage := ""
	if err != nil {
		var connErr *lockin.ConnectError
		if errors.As(err, &connErr) {
			stage = "connect"
		} else {
			stage = "io"
		}
	}
	monitor.ObserveQuery(elapsed, len(reply), stage)

	if err != nil {
		return Reading{}, err
	}

	r := Reading{
		Time: time.Now(),
		Addr: p.client.Config().Addr,
		Raw:  reply,
	}

	if p.pub != nil {
		if err := p.pub.Publish(ctx, r); err != nil {
			p.log.WithError(err).Warn("publish reading")
		}
	}

	return r, nil
}

// Run polls on an interval until the reading count, the time limit, or an
// interrupt ends the loop.
func (p *Poller) Run(interval time.Duration, count int, timeLimit time.Duration) {
	// Setup signal channel for interruption.
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)

	// Setup time limit channel
	tLimit := make(<-chan time.Time, 1)
	if timeLimit != 0 {
		tLimit = time.After(timeLimit)
	}

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for taken := 0; count < 0 || taken < count; taken++ {
		if taken > 0 {
			select {
			case <-sigint:
				return
			case <-tLimit:
				p.log.Infof("time limit reached: %v", time.Since(start))
				return
			case <-ticker.C:
			}
		}

		r, err := p.Poll(context.Background())
		if err != nil {
			p.log.WithError(err).Error("query failed")
			continue
		}

		if err := encoder.Encode(r); err != nil {
			p.log.WithError(err).Fatal("encode reading")
		}
	}
}

// RunScans queues one task per configured scan job and executes them
// sequentially. Every frame of a job triggers one lock-in query.
func (p *Poller) RunScans(jobs []config.ScanJob) {
	list := task.NewList()

	for _, job := range jobs {
		frames := job.Sweep.Frames(job.Frame)
		if len(frames) == 0 {
			// No sweep: the job is a single frame.
			frames = []scan.Frame{job.Frame}
		}

		p.log.WithFields(logrus.Fields{
			"scan":   job.Name,
			"frames": len(frames),
			"eta":    scan.FormatDuration(scan.EstimateDuration(frames)),
		}).Info("scan queued")

		list.Add(job.Name, func(ctx context.Context) error {
			return p.acquire(ctx, frames)
		})
	}

	runner := task.NewRunner(list, p.log)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	go func() {
		<-sigint
		runner.Stop()
	}()

	runner.Run(context.Background())

	for _, t := range list.Tasks() {
		state, reason := t.State()
		entry := p.log.WithFields(logrus.Fields{"scan": t.Description, "state": state.String()})
		if reason != "" {
			entry = entry.WithField("reason", reason)
		}
		entry.Info("scan finished")
	}
}

func (p *Poller) acquire(ctx context.Context, frames []scan.Frame) error {
	for i, f := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r, err := p.Poll(ctx)
		if err != nil {
			return err
		}

		p.log.WithFields(logrus.Fields{
			"frame": i,
			"bias":  f.Bias,
			"lines": f.Lines,
		}).Debug("frame acquired")

		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("open log file: %v, falling back to stdout", err)
		}
	}

	return log
}

func main() {
	EnvOverride()
	flag.Parse()

	if *version {
		fmt.Println("Build Tag: ", buildTag)
		fmt.Println("Build Date:", buildDate)
		fmt.Println("Commit:    ", commitHash)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	HandleFlags(cfg)

	log := setupLogger(cfg.Log)

	if *simulate {
		srv, err := sim.Start(sim.Config{Log: log})
		if err != nil {
			log.WithError(err).Fatal("start simulator")
		}
		defer srv.Close()
		cfg.Instrument.Addr = srv.Addr()
	}

	client := lockin.NewClient(cfg.Instrument.Lockin())
	log.WithFields(logrus.Fields{
		"addr":    client.Config().Addr,
		"command": client.Config().Command,
	}).Info("instrument configured")

	if cfg.Monitor.Enabled {
		monitor.New(log).StartMetricsServer(cfg.Monitor.MetricsPort)
	}

	var pub *queue.Publisher
	if cfg.Redis.Enabled {
		var err error
		pub, err = queue.NewPublisher(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.Channel,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			log,
		)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer pub.Close()
	}

	p := &Poller{client: client, pub: pub, log: log}

	if len(cfg.Scans) > 0 {
		p.RunScans(cfg.Scans)
		return
	}

	polls := cfg.Poll.Count
	if *single {
		polls = 1
	}
	p.Run(cfg.Poll.Interval, polls, *timeLimit)
}
