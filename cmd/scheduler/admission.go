package main

import (
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/dreamware/keypart/internal/scheduler"
	"github.com/dreamware/keypart/internal/wire"
)

// admissionServer accepts raw TCP connections speaking the fixed-width
// ClientMessage wire protocol and feeds decoded messages into
// schedule_and_answer, one goroutine per connection. The scheduler's own
// ingress mutex linearizes whatever order these goroutines happen to
// arrive in; a real deployment would sit behind a consensus or delivery
// layer that establishes that order deliberately instead.
type admissionServer struct {
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

func newAdmissionServer(sched *scheduler.Scheduler, logger *zap.Logger) *admissionServer {
	return &admissionServer{sched: sched, logger: logger}
}

// Serve accepts connections on ln until ctx is cancelled.
func (a *admissionServer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go a.handleConn(ctx, conn)
	}
}

func (a *admissionServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		m, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.logger.Warn("admission: read failed", zap.Error(err))
			}
			return
		}
		m.ReplyTo = func(r wire.ReplyMessage) {
			if err := wire.WriteReply(conn, r); err != nil {
				a.logger.Warn("admission: write reply failed", zap.Error(err))
			}
		}
		if err := a.sched.ScheduleAndAnswer(ctx, m); err != nil {
			a.logger.Warn("schedule_and_answer failed", zap.Error(err), zap.Int32("id", m.ID))
		}
	}
}
