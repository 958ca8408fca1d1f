package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/dreamware/keypart/internal/wire"
)

type cli struct {
	RequestFile     string `help:"Path to a request file (lines: 'R <key>', 'W <key> <value>', 'S <key> <n>')." arg:"" type:"existingfile"`
	Addr            string `help:"Scheduler admission address." default:"127.0.0.1:7070"`
	PrintPercentage int    `help:"Percentage of requests whose latency is logged." default:"0"`
}

func main() {
	var c cli
	kong.Parse(&c, kong.Description("keypart-loadgen replays a request file through a running scheduler."))

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(c, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(c cli, logger *zap.Logger) error {
	f, err := os.Open(c.RequestFile)
	if err != nil {
		return fmt.Errorf("loadgen: %w", err)
	}
	defer f.Close()

	requests, err := parseRequests(f)
	if err != nil {
		return fmt.Errorf("loadgen: parse %s: %w", c.RequestFile, err)
	}

	conn, err := net.Dial("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("loadgen: dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	samp := newSampler(c.PrintPercentage)
	for _, req := range requests {
		start := time.Now()
		if err := wire.WriteMessage(conn, req.msg); err != nil {
			return fmt.Errorf("loadgen: line %d: write: %w", req.line, err)
		}
		reply, err := wire.ReadReply(conn)
		if err != nil {
			return fmt.Errorf("loadgen: line %d: read reply: %w", req.line, err)
		}
		if samp.shouldPrint(req.msg.ID) {
			logger.Info("request completed",
				zap.Int("line", req.line),
				zap.String("kind", req.msg.Kind.String()),
				zap.Int64("key", req.msg.Key),
				zap.String("answer", reply.Answer),
				zap.Duration("latency", time.Since(start)),
			)
		}
	}

	logger.Info("loadgen finished", zap.Int("requests", len(requests)))
	return nil
}
