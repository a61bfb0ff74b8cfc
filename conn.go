package lync

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultConnectTimeout bounds how long Connect waits for the transport.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultRefreshTimeout bounds how long a refresh waits for the burst of
	// status frames that follows a query.
	DefaultRefreshTimeout = 3 * time.Second

	// DefaultQuietPeriod ends a refresh early once no frame has arrived for
	// this long.
	DefaultQuietPeriod = 250 * time.Millisecond

	DefaultRetryDelay = 3 * time.Second

	readBufferSize = 512
)

// Transport is a duplex byte stream to a controller. Open is called before
// the first Read or Write, and may be called again after Close.
type Transport interface {
	io.ReadWriteCloser
	Open(ctx context.Context) error
}

// Authenticator is implemented by transports that must log in before the
// stream can be opened.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateAuthenticating
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("ConnState(%d)", int32(s))
}

type writeReq struct {
	frame []byte
	resp  chan error
}

// session holds the goroutines belonging to one open transport.
type session struct {
	writeCh chan writeReq
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newSession() *session {
	return &session{
		writeCh: make(chan writeReq),
		done:    make(chan struct{}),
	}
}

func (s *session) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (ctl *Controller) State() ConnState {
	return ConnState(ctl.state.Load())
}

func (ctl *Controller) setState(state ConnState) {
	ctl.state.Store(int32(state))
}

// IsConnected reports whether the transport is open.
func (ctl *Controller) IsConnected() bool {
	return ctl.State() == StateConnected
}

// Connect opens the transport, authenticating first when the transport
// requires it, and starts the reader. It gives up after the connect timeout.
// On success a query for all zones is sent so the cache fills in.
func (ctl *Controller) Connect(ctx context.Context) (err error) {
	ctl.connMu.Lock()
	defer ctl.connMu.Unlock()

	if ctl.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.connectTimeout)
	defer cancel()
	defer func() {
		if err != nil {
			ctl.setState(StateDisconnected)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrConnectTimeout) {
				err = fmt.Errorf("%w: %v", ErrConnectTimeout, err)
			}
			ctl.logger.Error("Failed to connect to Lync", zap.Error(err))
		}
	}()

	if auth, ok := ctl.transport.(Authenticator); ok {
		ctl.setState(StateAuthenticating)
		if err = auth.Authenticate(ctx); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		ctl.logger.Info("Successfully authenticated to Lync")
	}

	if err = ctl.transport.Open(ctx); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	sess := newSession()
	sess.wg.Add(2)
	go ctl.readLoop(sess)
	go ctl.writeLoop(sess)
	ctl.session.Store(sess)
	ctl.setState(StateConnected)
	ctl.logger.Info("Connected to Lync")

	if err := ctl.sendZone(QueryAllZones, AllZones, nil); err != nil {
		ctl.logger.Warn("Initial zone query failed", zap.Error(err))
	}
	return nil
}

// ConnectWithRetry calls Connect up to ConnectRetryLimit times, pausing
// between attempts.
func (ctl *Controller) ConnectWithRetry(ctx context.Context) (err error) {
	for tries := 0; tries < ConnectRetryLimit; tries++ {
		if tries > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(ctl.retryDelay):
			}
		}
		if err = ctl.Connect(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrRetryTimeout, err)
}

// Close waits for linger, giving queued commands time to take effect, then
// stops the reader and releases the transport.
func (ctl *Controller) Close(linger time.Duration) error {
	if linger > 0 {
		time.Sleep(linger)
	}

	ctl.connMu.Lock()
	sess := ctl.session.Swap(nil)
	ctl.setState(StateDisconnected)
	ctl.connMu.Unlock()

	if sess == nil {
		return nil
	}
	sess.stop()
	err := ctl.transport.Close()
	sess.wg.Wait()
	ctl.logger.Info("Closed connection to Lync")
	return err
}

// lost tears down a session whose transport failed underneath it.
func (ctl *Controller) lost(sess *session, err error) {
	ctl.logger.Error("Lost connection to Lync", zap.Error(err))
	ctl.connMu.Lock()
	if ctl.session.CompareAndSwap(sess, nil) {
		ctl.setState(StateDisconnected)
	}
	ctl.connMu.Unlock()
	sess.stop()
	ctl.transport.Close()
}

func (ctl *Controller) readLoop(sess *session) {
	defer sess.wg.Done()
	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := ctl.transport.Read(buf)
		if n > 0 {
			if ctl.verboseLog {
				ctl.logger.Debug("RX", zap.String("hex", hex.EncodeToString(buf[:n])))
			}
			pending = ctl.drain(append(pending, buf[:n]...))
		}
		if err != nil {
			if !sess.stopped() {
				ctl.lost(sess, err)
			}
			return
		}
		if sess.stopped() {
			return
		}
	}
}

// drain decodes every complete frame in pending and returns what is left.
func (ctl *Controller) drain(pending []byte) []byte {
	ctl.mu.Lock()
	for {
		n := ctl.decoder.Decode(pending)
		if n == 0 {
			break
		}
		pending = pending[n:]
	}
	applied := ctl.applied
	ctl.applied = nil
	ctl.mu.Unlock()

	if len(applied) > 0 {
		ctl.signal()
		for _, frame := range applied {
			for _, handler := range ctl.handlers {
				handler(frame)
			}
		}
	}
	return append([]byte(nil), pending...)
}

func (ctl *Controller) writeLoop(sess *session) {
	defer sess.wg.Done()
	for {
		select {
		case req := <-sess.writeCh:
			_, err := ctl.transport.Write(req.frame)
			if ctl.verboseLog {
				ctl.logger.Debug("TX", zap.String("hex", hex.EncodeToString(req.frame)), zap.Error(err))
			}
			req.resp <- err
		case <-sess.done:
			return
		}
	}
}

// write queues frame behind any writes already in flight and waits for it to
// reach the transport.
func (ctl *Controller) write(frame []byte) error {
	sess := ctl.session.Load()
	if sess == nil {
		return ErrNotConnected
	}

	req := writeReq{frame: frame, resp: make(chan error, 1)}
	select {
	case sess.writeCh <- req:
	case <-sess.done:
		return ErrNotConnected
	}

	select {
	case err := <-req.resp:
		return err
	case <-sess.done:
		return ErrNotConnected
	}
}

// frameSignal returns a channel that is closed when the next frame has been
// applied.
func (ctl *Controller) frameSignal() <-chan struct{} {
	ctl.notifyMu.Lock()
	defer ctl.notifyMu.Unlock()
	return ctl.notify
}

func (ctl *Controller) signal() {
	ctl.notifyMu.Lock()
	close(ctl.notify)
	ctl.notify = make(chan struct{})
	ctl.notifyMu.Unlock()
}

// awaitQuiet blocks until frames stop arriving after next fires, or until the
// refresh timeout passes.
func (ctl *Controller) awaitQuiet(ctx context.Context, next <-chan struct{}) error {
	deadline := time.NewTimer(ctl.refreshTimeout)
	defer deadline.Stop()

	var quiet <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-quiet:
			return nil
		case <-next:
			next = ctl.frameSignal()
			quiet = time.After(ctl.quietPeriod)
		}
	}
}
