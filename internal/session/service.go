// Package session drives game rounds: it feeds engine outcomes into the
// round reducer, executes the effects the reducer returns, and keeps the
// progress ledger current.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gulfhit/littletalk/internal/bus"
	"github.com/gulfhit/littletalk/internal/config"
	"github.com/gulfhit/littletalk/internal/content"
	"github.com/gulfhit/littletalk/internal/progress"
	"github.com/gulfhit/littletalk/internal/progressstore"
	"github.com/gulfhit/littletalk/internal/protocol"
	"github.com/gulfhit/littletalk/internal/round"
	"github.com/gulfhit/littletalk/internal/speech"
)

const persistTimeout = 5 * time.Second

type Service struct {
	cfg       config.Config
	sessionID string
	listener  speech.Listener
	store     *progressstore.Store
	bus       *bus.Client
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ready     bool

	mu    sync.Mutex
	games map[string]*gameState
	rng   *rand.Rand

	attemptsTotal metric.Int64Counter
	verdictsTotal metric.Int64Counter
	roundsTotal   metric.Int64Counter
	unlocksTotal  metric.Int64Counter
}

type gameState struct {
	name   string
	cfg    config.GameConfig
	policy round.Policy
	tiers  [][]content.Target
	ledger map[string]progress.Entry
	streak int

	active      bool
	roundID     string
	cancelRound context.CancelFunc
}

// ProgressSnapshot is the externally visible progress state of one game.
type ProgressSnapshot struct {
	Game     string                    `json:"game"`
	Streak   int                       `json:"streak"`
	Items    map[string]progress.Entry `json:"items"`
	Unlocked []string                  `json:"unlocked"`
}

func NewService(parent context.Context, cfg config.Config, listener speech.Listener, store *progressstore.Store, busClient *bus.Client, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		listener:  listener,
		store:     store,
		bus:       busClient,
		logger:    logger.With(slog.String("component", "session")),
		ctx:       ctx,
		cancel:    cancel,
		games:     make(map[string]*gameState),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	if cfg.Letters.Enabled {
		s.games["letters"] = &gameState{
			name:   "letters",
			cfg:    cfg.Letters,
			policy: policyFrom(cfg.Letters),
			tiers:  [][]content.Target{content.Letters()},
		}
	}
	if cfg.Animals.Enabled {
		s.games["animals"] = &gameState{
			name:   "animals",
			cfg:    cfg.Animals,
			policy: policyFrom(cfg.Animals),
			tiers:  content.AnimalTiers(),
		}
	}

	s.initMetrics()
	return s
}

func policyFrom(g config.GameConfig) round.Policy {
	return round.Policy{
		RoundLength:              g.RoundLength,
		MaxAttempts:              g.MaxAttempts,
		WinThreshold:             g.WinThreshold(),
		MinCorrectForUnlock:      g.MinCorrectForUnlock,
		EngineResetBudget:        g.EngineResetBudget,
		FreeRetryBudget:          g.FreeRetryBudget,
		FreeRetryOnSilentNoMatch: true,
	}
}

func (s *Service) initMetrics() {
	meter := otel.Meter("littletalk/session")
	var err error
	if s.attemptsTotal, err = meter.Int64Counter("littletalk.attempts",
		metric.WithDescription("Listening attempts started")); err != nil {
		s.logger.Warn("failed to create attempts counter", slogError(err))
	}
	if s.verdictsTotal, err = meter.Int64Counter("littletalk.verdicts",
		metric.WithDescription("Scored attempt verdicts")); err != nil {
		s.logger.Warn("failed to create verdicts counter", slogError(err))
	}
	if s.roundsTotal, err = meter.Int64Counter("littletalk.rounds",
		metric.WithDescription("Completed rounds")); err != nil {
		s.logger.Warn("failed to create rounds counter", slogError(err))
	}
	if s.unlocksTotal, err = meter.Int64Counter("littletalk.unlocks",
		metric.WithDescription("Content items unlocked")); err != nil {
		s.logger.Warn("failed to create unlocks counter", slogError(err))
	}
}

// Start initializes the speech engine and loads persisted progress.
func (s *Service) Start() error {
	opts := speech.Options{
		Language:       s.cfg.Speech.Language,
		MaxUtteranceMS: s.cfg.Speech.MaxUtteranceMS,
		PostSilenceMS:  s.cfg.Speech.PostSilenceMS,
	}
	if err := s.listener.Init(s.ctx, opts); err != nil {
		return fmt.Errorf("init speech engine: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, g := range s.games {
		ledger, err := s.store.Load(s.ctx, name)
		if err != nil {
			return fmt.Errorf("load %s progress: %w", name, err)
		}
		if len(ledger) == 0 {
			ledger = progress.Reset(g.tiers)
		}
		streak, err := s.store.Streak(s.ctx, name)
		if err != nil {
			return fmt.Errorf("load %s streak: %w", name, err)
		}
		g.ledger = ledger
		g.streak = streak
		s.logger.Info("game loaded",
			slog.String("game", name),
			slog.Int("items", len(ledger)),
			slog.Int("streak", streak))
	}
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
	s.listener.Stop()
}

func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// StartRound begins a round for the named game. Only one round per game
// may be active at a time.
func (s *Service) StartRound(game string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[game]
	if !ok {
		return "", fmt.Errorf("unknown game %q", game)
	}
	if !s.ready {
		return "", errors.New("session service not started")
	}
	if g.active {
		return "", fmt.Errorf("game %q already has an active round", game)
	}

	pool := progress.UnlockedTargets(g.ledger, g.tiers)
	sequence := round.BuildSequence(pool, g.policy.RoundLength, s.rng)
	roundID := uuid.NewString()

	roundCtx, cancelRound := context.WithCancel(s.ctx)
	g.active = true
	g.roundID = roundID
	g.cancelRound = cancelRound

	s.logger.Info("round started",
		slog.String("game", game),
		slog.String("round_id", roundID),
		slog.Int("targets", len(sequence)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finishRound(g)
		d := &roundDriver{svc: s, g: g, roundID: roundID, ctx: roundCtx}
		d.run(sequence)
	}()
	return roundID, nil
}

func (s *Service) finishRound(g *gameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.cancelRound != nil {
		g.cancelRound()
	}
	g.active = false
	g.roundID = ""
	g.cancelRound = nil
}

// Abandon cancels the active round of a game, if any.
func (s *Service) Abandon(game string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		return fmt.Errorf("unknown game %q", game)
	}
	if !g.active {
		return nil
	}
	s.logger.Info("round abandoned",
		slog.String("game", game),
		slog.String("round_id", g.roundID))
	g.cancelRound()
	return nil
}

// ActiveRound reports the running round for a game, ok=false when idle.
func (s *Service) ActiveRound(game string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok || !g.active {
		return "", false
	}
	return g.roundID, true
}

// Snapshot returns the current progress state of a game.
func (s *Service) Snapshot(game string) (ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		return ProgressSnapshot{}, fmt.Errorf("unknown game %q", game)
	}

	items := make(map[string]progress.Entry, len(g.ledger))
	for k, v := range g.ledger {
		items[k] = v
	}
	var unlocked []string
	for _, t := range progress.UnlockedTargets(g.ledger, g.tiers) {
		unlocked = append(unlocked, t.Key)
	}
	return ProgressSnapshot{
		Game:     game,
		Streak:   g.streak,
		Items:    items,
		Unlocked: unlocked,
	}, nil
}

// Games lists the configured game names.
func (s *Service) Games() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.games))
	for name := range s.games {
		names = append(names, name)
	}
	return names
}

// ResetProgress wipes a game back to its initial state.
func (s *Service) ResetProgress(ctx context.Context, game string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		return fmt.Errorf("unknown game %q", game)
	}
	if g.active {
		return fmt.Errorf("game %q has an active round", game)
	}

	g.ledger = progress.Reset(g.tiers)
	g.streak = 0
	if err := s.store.ResetGame(ctx, game); err != nil {
		return fmt.Errorf("reset %s progress: %w", game, err)
	}
	s.logger.Info("progress reset", slog.String("game", game))
	return nil
}

func (s *Service) persistLedger(g *gameState) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.mu.Lock()
	ledger := make(map[string]progress.Entry, len(g.ledger))
	for k, v := range g.ledger {
		ledger[k] = v
	}
	s.mu.Unlock()
	if err := s.store.Save(ctx, g.name, ledger); err != nil {
		s.logger.Warn("failed to persist progress",
			slog.String("game", g.name), slogError(err))
	}
}

func (s *Service) persistStreak(g *gameState) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.mu.Lock()
	streak := g.streak
	s.mu.Unlock()
	if err := s.store.SetStreak(ctx, g.name, streak); err != nil {
		s.logger.Warn("failed to persist streak",
			slog.String("game", g.name), slogError(err))
	}
}

func (s *Service) publish(subject string, payload any) {
	if err := s.bus.PublishJSON(subject, payload); err != nil {
		s.logger.Warn("failed to publish game event",
			slog.String("subject", subject), slogError(err))
	}
}

// publishDurable is for events a consumer must not miss: round outcomes,
// mastery, unlocks. They go through the JetStream game stream.
func (s *Service) publishDurable(subject string, payload any) {
	if err := s.bus.PublishDurable(subject, payload); err != nil {
		s.logger.Warn("failed to publish durable game event",
			slog.String("subject", subject), slogError(err))
	}
}

// roundDriver executes the effects of one round and turns engine
// outcomes back into reducer events.
type roundDriver struct {
	svc     *Service
	g       *gameState
	roundID string
	ctx     context.Context

	attempt int
	heard   []string
}

func (d *roundDriver) run(sequence []content.Target) {
	p := d.g.policy
	state, effects := round.HandleEvent(p, round.State{}, round.Start{Sequence: sequence})
	for !state.Done() {
		next := d.execute(state, effects)
		if next == nil {
			if d.ctx.Err() == nil {
				return
			}
			next = round.Abandon{}
		}
		if hr, ok := next.(round.HeardResult); ok {
			d.heard = hr.Result.Texts()
		}
		state, effects = round.HandleEvent(p, state, next)
	}
	d.execute(state, effects)

	if state.Abandoned {
		d.svc.publishDurable(protocol.SubjectRoundComplete, protocol.RoundCompleted{
			SessionID: d.svc.sessionID,
			Game:      d.g.name,
			RoundID:   d.roundID,
			Correct:   state.Correct,
			Total:     len(sequence),
			Abandoned: true,
			Timestamp: time.Now().UTC(),
		})
	}
}

// execute performs every effect and returns the event produced by the
// blocking one (Listen or ScheduleAdvance), nil when the round context
// was cancelled.
func (d *roundDriver) execute(state round.State, effects []round.Effect) round.Event {
	s := d.svc
	var next round.Event
	for _, ef := range effects {
		switch ef := ef.(type) {
		case round.CancelListening:
			s.listener.Stop()
		case round.ResetEngine:
			if err := s.listener.Reset(d.ctx); err != nil {
				s.logger.Warn("engine reset failed", slogError(err))
			}
		case round.AnnounceAttempt:
			d.attempt = ef.Attempt
			d.heard = nil
			d.announceAttempt(ef)
		case round.AnnounceCorrect:
			d.announceVerdict(ef.Target, true, ef.Verdict.Confidence)
		case round.AnnounceIncorrect:
			d.announceVerdict(ef.Target, false, 0)
		case round.AnnounceComplete:
			d.announceComplete(state, ef)
		case round.RecordCorrect:
			d.recordCorrect(ef.Target)
		case round.CommitRound:
			d.commitRound(ef)
		case round.Listen:
			d.attempt = ef.Attempt
			next = d.listen(ef)
		case round.ScheduleAdvance:
			next = d.waitAdvance(ef)
		}
	}
	return next
}

func (d *roundDriver) listen(ef round.Listen) round.Event {
	s := d.svc
	watchdog := time.Duration(d.g.cfg.WatchdogMS) * time.Millisecond
	lctx, cancel := context.WithTimeout(d.ctx, watchdog)
	defer cancel()

	result, err := s.listener.Listen(lctx, ef.Target.Display)
	switch {
	case err == nil:
		return round.HeardResult{Token: ef.Token, Result: result}
	case d.ctx.Err() != nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return round.WatchdogFired{Token: ef.Token}
	default:
		code := speech.CodeOf(err)
		if code == "" {
			s.logger.Warn("speech engine failed", slogError(err))
		}
		return round.HeardError{
			Token:     ef.Token,
			Code:      code,
			Telemetry: speech.TelemetryOf(err),
		}
	}
}

func (d *roundDriver) waitAdvance(ef round.ScheduleAdvance) round.Event {
	delay := time.Duration(d.g.cfg.AutoAdvanceDelayMS) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-d.ctx.Done():
		return nil
	case <-timer.C:
		return round.FeedbackDone{Token: ef.Token}
	}
}

func (d *roundDriver) announceAttempt(ef round.AnnounceAttempt) {
	s := d.svc
	if s.attemptsTotal != nil {
		s.attemptsTotal.Add(d.ctx, 1, metric.WithAttributes(attribute.String("game", d.g.name)))
	}
	s.publish(protocol.SubjectAttemptStart, protocol.AttemptStarted{
		SessionID: d.svc.sessionID,
		Game:      d.g.name,
		RoundID:   d.roundID,
		TargetKey: ef.Target.Key,
		Attempt:   ef.Attempt,
		Timestamp: time.Now().UTC(),
	})
}

func (d *roundDriver) announceVerdict(target content.Target, matched bool, confidence float64) {
	s := d.svc
	if s.verdictsTotal != nil {
		s.verdictsTotal.Add(d.ctx, 1, metric.WithAttributes(
			attribute.String("game", d.g.name),
			attribute.Bool("matched", matched)))
	}
	s.publish(protocol.SubjectAttemptVerdict, protocol.AttemptVerdict{
		SessionID:  d.svc.sessionID,
		Game:       d.g.name,
		RoundID:    d.roundID,
		TargetKey:  target.Key,
		Attempt:    d.attempt,
		Matched:    matched,
		Heard:      d.heard,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	})
}

func (d *roundDriver) announceComplete(state round.State, ef round.AnnounceComplete) {
	s := d.svc
	if s.roundsTotal != nil {
		s.roundsTotal.Add(d.ctx, 1, metric.WithAttributes(
			attribute.String("game", d.g.name),
			attribute.Bool("won", ef.Won)))
	}
	s.logger.Info("round completed",
		slog.String("game", d.g.name),
		slog.String("round_id", d.roundID),
		slog.Int("correct", ef.Correct),
		slog.Int("total", ef.Total),
		slog.Bool("won", ef.Won),
		slog.Bool("speech_disabled", state.SpeechDisabled))
	s.publishDurable(protocol.SubjectRoundComplete, protocol.RoundCompleted{
		SessionID: d.svc.sessionID,
		Game:      d.g.name,
		RoundID:   d.roundID,
		Correct:   ef.Correct,
		Total:     ef.Total,
		Won:       ef.Won,
		Timestamp: time.Now().UTC(),
	})
}

func (d *roundDriver) recordCorrect(target content.Target) {
	s := d.svc
	s.mu.Lock()
	entry, newlyMastered := progress.RecordCorrect(d.g.ledger, target)
	var unlockedItem content.Target
	var didUnlock bool
	if newlyMastered && d.g.cfg.UnlockPolicy == "immediate" {
		unlockedItem, didUnlock = progress.UnlockOnMastery(d.g.ledger, d.g.tiers, target, s.rng)
	}
	s.mu.Unlock()

	if newlyMastered {
		s.publishDurable(protocol.SubjectProgressMastery, protocol.ProgressUnlocked{
			SessionID: d.svc.sessionID,
			Game:      d.g.name,
			TargetKey: target.Key,
			Tier:      target.Tier,
			Timestamp: time.Now().UTC(),
		})
		s.logger.Info("item mastered",
			slog.String("game", d.g.name),
			slog.String("target", target.Key),
			slog.Int("level", entry.Level))
	}
	if didUnlock {
		d.publishUnlock(unlockedItem, "immediate")
	}
	s.persistLedger(d.g)
}

func (d *roundDriver) commitRound(ef round.CommitRound) {
	s := d.svc
	if d.g.cfg.UnlockPolicy != "streak" {
		s.persistLedger(d.g)
		return
	}

	s.mu.Lock()
	streak, unlockedItem, didUnlock := progress.ApplyRoundOutcome(
		d.g.ledger, d.g.tiers, d.g.streak, ef.Correct, d.g.policy.MinCorrectForUnlock, s.rng)
	d.g.streak = streak
	s.mu.Unlock()

	if didUnlock {
		d.publishUnlock(unlockedItem, "streak")
	}
	s.persistLedger(d.g)
	s.persistStreak(d.g)
}

func (d *roundDriver) publishUnlock(target content.Target, policy string) {
	s := d.svc
	if s.unlocksTotal != nil {
		s.unlocksTotal.Add(d.ctx, 1, metric.WithAttributes(attribute.String("game", d.g.name)))
	}
	s.logger.Info("item unlocked",
		slog.String("game", d.g.name),
		slog.String("target", target.Key),
		slog.Int("tier", target.Tier),
		slog.String("policy", policy))
	s.publishDurable(protocol.SubjectProgressUnlock, protocol.ProgressUnlocked{
		SessionID: d.svc.sessionID,
		Game:      d.g.name,
		TargetKey: target.Key,
		Tier:      target.Tier,
		Policy:    policy,
		Timestamp: time.Now().UTC(),
	})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
