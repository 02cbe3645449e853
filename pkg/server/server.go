// Package server implements the victordb request loop shared by the index
// and table servers. Dispatch is strictly serial : connection goroutines only
// read frame headers (the runtime's poller is the readiness multiplexer) and
// queue themselves on the dispatch channel; a single dispatch goroutine reads
// each payload into the one shared buffer, applies the request against the
// state machine, appends applied mutations to the WAL, writes the response
// and probes the checkpoint threshold. The visible order of mutations is the
// order in which frames were dispatched, and no two requests are ever
// in-flight against the collaborator at the same time.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
	"github.com/victor-base/victordb/pkg/wal"
)

// session is one slot of the connection table.
type session struct {
	conn net.Conn
	// op and length carry the decoded header of the pending request from the
	// connection goroutine to the dispatcher; the channel send orders the
	// accesses.
	op      proto.Opcode
	length  int
	proceed chan bool
}

// Options tunes one Server.
type Options struct {
	// Socket is the filesystem path of the unix stream endpoint.
	Socket string
	// MaxConnections bounds the connection table; 0 means the default.
	MaxConnections int
	// ExportThreshold is the mutation count that must be exceeded to
	// trigger a checkpoint; 0 means the default.
	ExportThreshold int
	Logger          *logrus.Entry
}

// Server drives one state machine over a unix stream endpoint.
type Server struct {
	machine   StateMachine
	wal       *wal.Writer
	logger    *logrus.Entry
	socket    string
	maxConns  int
	threshold int

	buf      *proto.Buffer
	requests chan *session
	done     chan struct{}
	ready    chan struct{}

	mu       sync.Mutex
	sessions map[*session]struct{}

	// Mutation counters since the last checkpoint, owned by the dispatcher.
	addCount int
	delCount int
}

// New builds a Server around a recovered state machine and its WAL.
func New(machine StateMachine, w *wal.Writer, opts Options) *Server {
	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		maxConns = victordb.MaxConnections
	}
	threshold := opts.ExportThreshold
	if threshold <= 0 {
		threshold = victordb.DefaultExportThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		machine:   machine,
		wal:       w,
		logger:    logger.WithField("server", machine.Name()),
		socket:    opts.Socket,
		maxConns:  maxConns,
		threshold: threshold,
		buf:       proto.NewBuffer(),
		requests:  make(chan *session),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
		sessions:  make(map[*session]struct{}),
	}
}

// Recover replays the WAL through the state machine. It must run before
// Serve, and is separate so binaries can fail fast on a corrupt log.
func (s *Server) Recover() error {
	applied, err := wal.Replay(s.wal.Path(), s.machine.WALOpcodes(), s.machine.Replay, s.logger)
	if err != nil {
		return fmt.Errorf("wal recovery: %w", err)
	}
	if applied > 0 {
		s.logger.WithField("entries", applied).Info("wal replay complete")
	}
	return nil
}

// Ready is closed once the endpoint is bound and the server accepts clients.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve binds the endpoint and runs the dispatch loop until ctx is
// cancelled, then tears everything down : connections, a final checkpoint
// for unsnapshotted mutations, the WAL handle and the socket file.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.socket, err)
	}
	s.logger.WithField("socket", s.socket).Info("serving")
	close(s.ready)
	go s.acceptLoop(ln)

	s.dispatch(ctx)

	close(s.done)
	ln.Close()
	s.closeSessions()
	s.finalCheckpoint()
	if err := s.wal.Close(); err != nil {
		s.logger.WithError(err).Warn("closing wal")
	}
	if err := s.machine.Close(); err != nil {
		s.logger.WithError(err).Warn("closing state machine")
	}
	if err := os.Remove(s.socket); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).Warn("removing socket")
	}
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.WithError(err).Error("accept failed")
			}
			return
		}
		s.mu.Lock()
		if len(s.sessions) >= s.maxConns {
			s.mu.Unlock()
			s.logger.WithField("limit", s.maxConns).Warn("connection table full, closing new client")
			conn.Close()
			continue
		}
		sess := &session{conn: conn, proceed: make(chan bool, 1)}
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()
		go s.readLoop(sess)
	}
}

// readLoop blocks on the next frame header of one connection. The blocked
// read is the readiness wait; the payload itself is read by the dispatcher,
// serially, into the shared buffer.
func (s *Server) readLoop(sess *session) {
	defer s.drop(sess)
	for {
		var hdr [proto.HeaderLen]byte
		if _, err := io.ReadFull(sess.conn, hdr[:]); err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.WithError(err).Debug("connection closed")
			}
			return
		}
		sess.op, sess.length = proto.DecodeHeader(hdr[:])
		select {
		case s.requests <- sess:
		case <-s.done:
			return
		}
		select {
		case ok := <-sess.proceed:
			if !ok {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("terminate requested, leaving dispatch loop")
			return
		case sess := <-s.requests:
			s.serveOne(sess)
			s.maybeCheckpoint()
		}
	}
}

func (s *Server) serveOne(sess *session) {
	payload, err := proto.ReadPayload(sess.conn, s.buf, sess.length)
	if err != nil {
		s.logger.WithError(err).Warn("reading request payload")
		s.drop(sess)
		sess.proceed <- false
		return
	}
	resp, mutation := s.machine.Handle(sess.op, payload)
	if mutation != MutationNone {
		// The mutation is already applied; a lost log entry is tolerated
		// and logged, not rolled back.
		if err := s.wal.Append(sess.op, payload); err != nil {
			s.logger.WithError(err).Warn("wal append failed")
		}
		switch mutation {
		case MutationAdd:
			s.addCount++
		case MutationDel:
			s.delCount++
		}
	}
	if err := proto.WriteFrame(sess.conn, resp.Op, resp.Payload); err != nil {
		s.logger.WithError(err).Warn("writing response")
		s.drop(sess)
		sess.proceed <- false
		return
	}
	if resp.Close {
		s.drop(sess)
		sess.proceed <- false
		return
	}
	sess.proceed <- true
}

func (s *Server) drop(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	sess.conn.Close()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	for sess := range s.sessions {
		sess.conn.Close()
	}
	s.sessions = make(map[*session]struct{})
	s.mu.Unlock()
}

func (s *Server) maybeCheckpoint() {
	if s.addCount+s.delCount <= s.threshold {
		return
	}
	if err := s.machine.Checkpoint(); err != nil {
		// Keep the WAL and keep serving; the probe fires again after the
		// next mutation.
		s.logger.WithError(err).Error("checkpoint failed")
		return
	}
	if err := s.wal.Reset(); err != nil {
		s.logger.WithError(err).Warn("removing wal after checkpoint")
	}
	s.logger.WithFields(logrus.Fields{
		"added":   s.addCount,
		"deleted": s.delCount,
	}).Info("checkpoint complete")
	s.addCount, s.delCount = 0, 0
}

func (s *Server) finalCheckpoint() {
	if s.addCount+s.delCount == 0 {
		return
	}
	if err := s.machine.Checkpoint(); err != nil {
		s.logger.WithError(err).Error("final checkpoint failed, state will be recovered from the wal")
		return
	}
	if err := s.wal.Reset(); err != nil {
		s.logger.WithError(err).Warn("removing wal after final checkpoint")
	}
	s.addCount, s.delCount = 0, 0
}
