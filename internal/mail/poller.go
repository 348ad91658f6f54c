package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// RawMessage непрочитанное письмо из ящика
type RawMessage struct {
	UID  uint32
	Body []byte
}

// Mailbox подключение к почтовому ящику. Используется только горутиной поллера.
type Mailbox interface {
	// Unseen возвращает UID непрочитанных писем начиная с since
	Unseen(ctx context.Context, since time.Time) ([]uint32, error)
	// Fetch загружает письма по UID. Флаг \Seen не ставится.
	Fetch(ctx context.Context, uids []uint32) ([]RawMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	// Idle ждет новых писем до закрытия stop; о новой почте сообщает в notify.
	Idle(stop <-chan struct{}, notify chan<- struct{}) error
	Close() error
}

type Dialer func(ctx context.Context) (Mailbox, error)

// Processor обрабатывает одно входящее письмо
type Processor interface {
	Process(ctx context.Context, email InboundEmail) (Result, error)
}

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateFetching
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateFetching:
		return "fetching"
	case StateError:
		return "error"
	}
	return "idle"
}

// PassStats итоги одного прохода по ящику
type PassStats struct {
	StartedAt time.Time `json:"startedAt"`
	Fetched   int       `json:"fetched"`
	Attached  int       `json:"attached"`
	Ignored   int       `json:"ignored"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// после стольких неудачных попыток письмо больше не берется до конца дня
const maxAttempts = 3

type PollerConfig struct {
	Interval       time.Duration
	MaxPerCheck    int
	ReconnectDelay time.Duration
}

// Poller периодически забирает непрочитанные письма и передает их в Processor.
// Одновременно выполняется не больше одного прохода; триггеры во время прохода отбрасываются.
type Poller struct {
	dial      Dialer
	processor Processor
	cfg       PollerConfig
	logger    *log.Logger
	now       func() time.Time

	state    atomic.Int32
	inFlight atomic.Bool
	kick     chan struct{}

	mu       sync.Mutex
	lastPass *PassStats

	// неудачные попытки по UID за день failDay, только для горутины прохода
	failures map[uint32]int
	failDay  time.Time
}

func NewPoller(dial Dialer, processor Processor, cfg PollerConfig, logger *log.Logger) *Poller {
	if cfg.MaxPerCheck <= 0 {
		cfg.MaxPerCheck = 50
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Poller{
		dial:      dial,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		kick:      make(chan struct{}, 1),
		failures:  map[uint32]int{},
	}
}

func (p *Poller) State() State {
	return State(p.state.Load())
}

func (p *Poller) setState(s State) {
	p.state.Store(int32(s))
}

// LastPass возвращает итоги последнего завершенного прохода или nil.
func (p *Poller) LastPass() *PassStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastPass == nil {
		return nil
	}
	stats := *p.lastPass
	return &stats
}

// Trigger просит выполнить проход. Возвращает false, если проход уже идет или уже запрошен.
func (p *Poller) Trigger() bool {
	if p.inFlight.Load() {
		return false
	}
	select {
	case p.kick <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run работает до отмены ctx, переподключаясь после ошибок.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.Interval > 0 {
		c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(p.logger)))
		_, err := c.AddFunc("@every "+p.cfg.Interval.String(), func() {
			if !p.Trigger() {
				p.logger.Println("Previous check still running. Skipping this run.")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule mailbox check: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	for {
		p.setState(StateConnecting)
		mbox, err := p.dial(ctx)
		if err == nil {
			p.logger.Println("mailbox connected")
			err = p.serve(ctx, mbox)
			if cerr := mbox.Close(); cerr != nil && ctx.Err() == nil {
				p.logger.Printf("close mailbox: %v", cerr)
			}
		}
		if ctx.Err() != nil {
			p.setState(StateIdle)
			return nil
		}

		p.setState(StateError)
		p.logger.Printf("mailbox error: %v; reconnecting in %s", err, p.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			p.setState(StateIdle)
			return nil
		case <-time.After(p.cfg.ReconnectDelay):
		}
	}
}

// serve выполняет стартовый проход, затем ждет в IDLE триггеров.
func (p *Poller) serve(ctx context.Context, mbox Mailbox) error {
	if err := p.pass(ctx, mbox); err != nil {
		return err
	}

	for {
		p.setState(StateListening)
		stop := make(chan struct{})
		notify := make(chan struct{}, 1)
		idleDone := make(chan error, 1)
		go func() {
			idleDone <- mbox.Idle(stop, notify)
		}()

		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return ctx.Err()
		case err := <-idleDone:
			close(stop)
			if err == nil {
				err = errors.New("idle ended unexpectedly")
			}
			return err
		case <-p.kick:
		case <-notify:
			p.logger.Println("new mail signalled")
		}

		close(stop)
		if err := <-idleDone; err != nil {
			return fmt.Errorf("stop idle: %w", err)
		}
		if err := p.pass(ctx, mbox); err != nil {
			return err
		}
	}
}

// pass один проход: письма за сегодня, без \Seen. Ошибки отдельных писем логируются и пропускаются,
// ошибка соединения возвращается.
func (p *Poller) pass(ctx context.Context, mbox Mailbox) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer p.inFlight.Store(false)
	p.setState(StateFetching)

	stats := PassStats{StartedAt: p.now()}
	day := startOfDay(stats.StartedAt)
	if !day.Equal(p.failDay) {
		p.failDay = day
		p.failures = map[uint32]int{}
	}

	uids, err := mbox.Unseen(ctx, day)
	if err != nil {
		return fmt.Errorf("search unseen: %w", err)
	}
	uids, stats.Skipped = p.selectUIDs(uids)

	var msgs []RawMessage
	if len(uids) > 0 {
		msgs, err = mbox.Fetch(ctx, uids)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}
	}
	stats.Fetched = len(msgs)

	for _, m := range msgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		email, err := ParseMessage(bytes.NewReader(m.Body))
		if err != nil {
			stats.Failed++
			p.failures[m.UID]++
			p.logger.Printf("parse message uid=%d: %v", m.UID, err)
			continue
		}

		res, err := p.processor.Process(ctx, email)
		if err != nil {
			stats.Failed++
			p.failures[m.UID]++
			p.logger.Printf("process message uid=%d from %s: %v", m.UID, email.From, err)
			continue
		}
		delete(p.failures, m.UID)
		if res.Outcome == Attached {
			stats.Attached++
		} else {
			stats.Ignored++
		}

		if err := mbox.MarkSeen(ctx, m.UID); err != nil {
			return fmt.Errorf("mark seen uid=%d: %w", m.UID, err)
		}
	}

	if stats.Fetched > 0 {
		p.logger.Printf("mailbox pass: fetched=%d attached=%d ignored=%d failed=%d skipped=%d",
			stats.Fetched, stats.Attached, stats.Ignored, stats.Failed, stats.Skipped)
	}
	p.mu.Lock()
	p.lastPass = &stats
	p.mu.Unlock()
	return nil
}

// selectUIDs убирает письма, исчерпавшие попытки, и обрезает список до MaxPerCheck.
// Старые письма идут первыми.
func (p *Poller) selectUIDs(uids []uint32) ([]uint32, int) {
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	out := make([]uint32, 0, len(uids))
	skipped := 0
	for _, uid := range uids {
		if p.failures[uid] >= maxAttempts {
			skipped++
			continue
		}
		out = append(out, uid)
	}
	if len(out) > p.cfg.MaxPerCheck {
		out = out[:p.cfg.MaxPerCheck]
	}
	return out, skipped
}

// startOfDay полночь текущего дня по локальному времени
func startOfDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
