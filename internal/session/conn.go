package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Status is the connection state shown to the agent.
type Status string

// Connection states.
const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
	StatusError        Status = "ERROR"
)

// Session errors.
var (
	ErrNotConnected = errors.New("session is not connected")
	ErrBusy         = errors.New("session is already open")
)

// Frame is one encoded audio frame sent to the remote session.
type Frame struct {
	MIMEType string
	Data     []byte
}

// Message is one server message. Any combination of fields may be set.
type Message struct {
	Text        string
	Audio       []byte
	Interrupted bool
}

// Session is the remote bidirectional stream. Receive returns io.EOF when
// the remote side closes.
type Session interface {
	Send(ctx context.Context, f Frame) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Dialer opens a remote session with a system instruction.
type Dialer interface {
	Dial(ctx context.Context, instruction string) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, instruction string) (Session, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, instruction string) (Session, error) {
	return f(ctx, instruction)
}

// Player plays received audio. Flush stops everything queued.
type Player interface {
	Play(audio []byte) error
	Flush()
}

// MissionAssigner appends a directive to an agent's missions.
type MissionAssigner interface {
	AssignMission(ctx context.Context, agentID string, d types.Directive) (types.Mission, error)
}

// Resources are the local capture chain released on teardown, in field
// order, after the session and keep-alive. Nil fields are skipped.
type Resources struct {
	Capture   io.Closer
	Processor io.Closer
	Source    io.Closer
	Input     io.Closer
}

// Entry is one transcript line.
type Entry struct {
	Text string
	At   time.Time
}

// Config wires a Conn.
type Config struct {
	Dialer    Dialer
	Missions  MissionAssigner
	Player    Player
	Resources func() Resources

	// KeepAlive sends an empty frame at this interval while connected.
	// Zero disables it.
	KeepAlive time.Duration

	OnTranscript func(Entry)
	OnStatus     func(Status)
	OnMission    func(types.Mission)

	Logger zerolog.Logger
}

// Conn is one agent's live line. Open and Close may be called repeatedly.
type Conn struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time

	mu     sync.Mutex
	status Status
	link   *link
}

// link is one open session and everything acquired for it.
type link struct {
	agentID   string
	session   Session
	resources Resources
	cancel    context.CancelFunc
	loops     sync.WaitGroup

	userClosed bool
	teardown   sync.Once
	closeErr   error
}

// New creates a disconnected Conn.
func New(cfg Config) *Conn {
	return &Conn{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "session").Logger(),
		now:    time.Now,
		status: StatusDisconnected,
	}
}

// Status returns the current connection state.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Conn) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(s)
	}
}

// Open dials a session for agent and starts relaying messages. A returning
// agent gets the reconnect greeting instead of the onboarding script.
func (c *Conn) Open(ctx context.Context, agent types.AgentProfile, returning bool) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusConnected {
		c.mu.Unlock()
		return ErrBusy
	}
	c.status = StatusConnecting
	c.mu.Unlock()
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(StatusConnecting)
	}

	l := &link{agentID: agent.ID}
	if c.cfg.Resources != nil {
		l.resources = c.cfg.Resources()
	}

	s, err := c.cfg.Dialer.Dial(ctx, Instruction(agent, returning))
	if err != nil {
		c.shutdown(l)
		c.setStatus(StatusError)
		c.log.Error().Err(err).Str("agent", agent.ID).Msg("connect failed")
		return fmt.Errorf("%w: live session: %w", types.ErrExternalService, err)
	}
	l.session = s

	// The relay outlives Open's context; Close cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel

	c.mu.Lock()
	c.link = l
	c.mu.Unlock()
	c.setStatus(StatusConnected)
	c.log.Info().Str("agent", agent.ID).Msg("session connected")

	l.loops.Add(1)
	go c.receive(runCtx, l)
	if c.cfg.KeepAlive > 0 {
		l.loops.Add(1)
		go c.keepAlive(runCtx, l)
	}
	return nil
}

// Send forwards a captured audio frame.
func (c *Conn) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	l := c.link
	connected := c.status == StatusConnected
	c.mu.Unlock()
	if l == nil || !connected {
		return ErrNotConnected
	}
	return l.session.Send(ctx, f)
}

// Close ends the session at the agent's request and waits for the relay
// to stop. Closing a Conn that is not open is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	l := c.link
	c.link = nil
	if l != nil {
		l.userClosed = true
	}
	c.mu.Unlock()
	if l == nil {
		return nil
	}

	c.shutdown(l)
	l.loops.Wait()
	c.setStatus(StatusDisconnected)
	c.log.Info().Str("agent", l.agentID).Msg("session closed")
	return l.closeErr
}

// shutdown releases l's resources once: session, keep-alive, capture,
// processor, source, input.
func (c *Conn) shutdown(l *link) {
	l.teardown.Do(func() {
		var errs []error
		if l.session != nil {
			errs = append(errs, l.session.Close())
		}
		if l.cancel != nil {
			l.cancel()
		}
		for _, r := range []io.Closer{l.resources.Capture, l.resources.Processor, l.resources.Source, l.resources.Input} {
			if r != nil {
				errs = append(errs, r.Close())
			}
		}
		l.closeErr = errors.Join(errs...)
		if l.closeErr != nil {
			c.log.Warn().Err(l.closeErr).Msg("teardown")
		}
	})
}

func (c *Conn) receive(ctx context.Context, l *link) {
	defer l.loops.Done()
	for {
		msg, err := l.session.Receive(ctx)
		if err != nil {
			c.mu.Lock()
			user := l.userClosed
			if !user && c.link == l {
				c.link = nil
			}
			c.mu.Unlock()
			if user {
				return
			}
			if errors.Is(err, io.EOF) {
				c.log.Warn().Str("agent", l.agentID).Msg("session closed by remote")
			} else {
				c.log.Error().Err(err).Str("agent", l.agentID).Msg("session error")
			}
			c.shutdown(l)
			c.setStatus(StatusError)
			return
		}
		c.handle(ctx, l, msg)
	}
}

func (c *Conn) handle(ctx context.Context, l *link, msg Message) {
	if len(msg.Audio) > 0 && c.cfg.Player != nil {
		if err := c.cfg.Player.Play(msg.Audio); err != nil {
			c.log.Warn().Err(err).Msg("play audio")
		}
	}
	if msg.Interrupted && c.cfg.Player != nil {
		c.cfg.Player.Flush()
	}
	if msg.Text == "" {
		return
	}
	if c.cfg.OnTranscript != nil {
		c.cfg.OnTranscript(Entry{Text: msg.Text, At: c.now()})
	}

	d, ok, err := ParseDirective(msg.Text)
	switch {
	case !ok:
		return
	case err != nil:
		c.log.Error().Err(err).Str("agent", l.agentID).Msg("dropped malformed mission directive")
		return
	case c.cfg.Missions == nil:
		return
	}
	m, err := c.cfg.Missions.AssignMission(ctx, l.agentID, d)
	if err != nil {
		c.log.Error().Err(err).Str("agent", l.agentID).Msg("assign mission")
		return
	}
	if c.cfg.OnMission != nil {
		c.cfg.OnMission(m)
	}
}

func (c *Conn) keepAlive(ctx context.Context, l *link) {
	defer l.loops.Done()
	t := time.NewTicker(c.cfg.KeepAlive)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := l.session.Send(ctx, Frame{}); err != nil && ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("keep-alive")
			}
		}
	}
}
