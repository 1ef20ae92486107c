package call

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/sched"
	"go.uber.org/zap"
)

// MessageLog receives the call-log messages written when a call ends.
// *chat.Store satisfies it.
type MessageLog interface {
	Append(contactID string, msg chat.Message) (chat.Message, error)
	ContactName(id string) (string, bool)
}

// Config holds the coordinator's timer durations.
type Config struct {
	DialDelay    time.Duration
	CleanupDelay time.Duration
	TickInterval time.Duration
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		DialDelay:    1200 * time.Millisecond,
		CleanupDelay: 400 * time.Millisecond,
		TickInterval: time.Second,
	}
}

// Coordinator owns the calls map. All state lives behind mu; timer
// callbacks re-read the map and check the call id before acting.
type Coordinator struct {
	mu    sync.Mutex
	calls map[string]Call

	ticks        int
	tickerCallID string
	stopTicker   sched.Cancel

	cfg    Config
	sched  sched.Scheduler
	log    MessageLog
	bus    *bus.Bus
	logger *zap.Logger
	newID  func() string
}

// New creates a coordinator. Zero durations in cfg take their defaults.
func New(cfg Config, s sched.Scheduler, log MessageLog, b *bus.Bus, logger *zap.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.DialDelay <= 0 {
		cfg.DialDelay = def.DialDelay
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = def.CleanupDelay
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		calls:  make(map[string]Call),
		cfg:    cfg,
		sched:  s,
		log:    log,
		bus:    b,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Get returns the record held for a participant.
func (c *Coordinator) Get(participantID string) (Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.calls[participantID]
	return rec, ok
}

// Calls returns a copy of the whole map.
func (c *Coordinator) Calls() map[string]Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.calls)
}

// Ticks returns the duration counter of the connected call, in ticks.
func (c *Coordinator) Ticks() (callID string, ticks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickerCallID, c.ticks
}

// StartCall places a call from fromID to toID. Any call either participant
// is in is ended first. The caller starts dialing (or ringing for an
// incoming call being surfaced) and the callee rings; after the dial delay
// a still-dialing caller moves to ringing.
func (c *Coordinator) StartCall(typ Type, fromID, toID string, dir Direction) (Call, error) {
	switch {
	case fromID == "" || toID == "":
		return Call{}, ErrMissingParticipant
	case fromID == toID:
		return Call{}, ErrSelfCall
	case typ != Audio && typ != Video:
		return Call{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	if dir == "" {
		dir = Outgoing
	}
	if dir != Outgoing && dir != Incoming {
		return Call{}, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.sched.Now().UnixMilli()
	c.supersede(fromID, toID, now)
	c.supersede(toID, fromID, now)

	id := c.newID()
	callerStatus := Ringing
	if dir == Outgoing {
		callerStatus = Dialing
	}
	caller := Call{
		ID:            id,
		WithContactID: toID,
		Type:          typ,
		Status:        callerStatus,
		Direction:     Outgoing,
		StartedAt:     now,
		Docked:        true,
	}
	callee := Call{
		ID:            id,
		WithContactID: fromID,
		Type:          typ,
		Status:        Ringing,
		Direction:     Incoming,
		StartedAt:     now,
		Docked:        true,
	}
	c.put(fromID, caller)
	c.put(toID, callee)

	if callerStatus == Dialing {
		c.sched.After(c.cfg.DialDelay, func() { c.autoRing(fromID, id) })
	}
	c.logger.Info("call started",
		zap.String("call_id", id),
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.String("type", string(typ)),
	)
	return caller, nil
}

// supersede ends whatever call pid is in ahead of a new call between pid
// and other. The old peer's record is removed at once unless it is about to
// be overwritten too, so no half of a pair outlives its partner.
func (c *Coordinator) supersede(pid, other string, now int64) {
	rec, ok := c.calls[pid]
	if !ok {
		return
	}
	if rec.Status != Ended {
		c.finish(pid, now)
		c.stopTickerFor(rec.ID)
		c.logger.Info("call superseded", zap.String("call_id", rec.ID), zap.String("participant", pid))
	}

	peerID := rec.WithContactID
	if peerID == other {
		return
	}
	peer, ok := c.calls[peerID]
	if !ok || peer.ID != rec.ID {
		return
	}
	if peer.Status != Ended {
		c.finish(peerID, now)
	}
	c.remove(peerID)
}

func (c *Coordinator) autoRing(callerID, callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.calls[callerID]
	if !ok || rec.ID != callID || rec.Status != Dialing {
		return
	}
	c.transition(callerID, Ringing, nil)
}

// AnswerCall connects the call selfID is in. Either participant may answer.
// Both records become connected with the same accepted time, and the
// duration ticker restarts for this call.
func (c *Coordinator) AnswerCall(selfID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	mine, ok := c.calls[selfID]
	if !ok {
		return false
	}
	peerID := mine.WithContactID
	theirs, ok := c.calls[peerID]
	if !ok || theirs.ID != mine.ID {
		return false
	}
	if !answerable(mine.Status) || !answerable(theirs.Status) {
		return false
	}

	acceptedAt := c.sched.Now().UnixMilli()
	accept := func(r *Call) { r.AcceptedAt = acceptedAt }
	for _, pid := range []string{selfID, peerID} {
		if c.calls[pid].Status == Dialing {
			c.transition(pid, Ringing, nil)
		}
		c.transition(pid, Connected, accept)
	}
	c.startTicker(mine.ID)

	c.logger.Info("call connected", zap.String("call_id", mine.ID), zap.String("answered_by", selfID))
	return true
}

func answerable(s Status) bool {
	return s == Dialing || s == Ringing
}

// EndCall hangs up the call selfID is in. Both conversations get a call-log
// message, both records end, and after the cleanup delay the records are
// removed unless a newer call has replaced them.
func (c *Coordinator) EndCall(selfID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	mine, ok := c.calls[selfID]
	if !ok || mine.Status == Ended {
		return false
	}
	peerID := mine.WithContactID
	theirs, hasPeer := c.calls[peerID]
	if hasPeer && theirs.ID != mine.ID {
		hasPeer = false
	}

	c.stopTickerFor(mine.ID)

	endedAt := c.sched.Now().UnixMilli()
	acceptedAt := mine.AcceptedAt
	if acceptedAt == 0 && hasPeer {
		acceptedAt = theirs.AcceptedAt
	}
	var secs int64
	if acceptedAt > 0 {
		secs = (endedAt - acceptedAt) / 1000
	}
	dur := FormatDuration(secs)

	if peerID != "" && c.log != nil {
		c.writeLogs(selfID, peerID, mine.Type, dur, endedAt)
	}

	c.finish(selfID, endedAt)
	if hasPeer {
		c.finish(peerID, endedAt)
	}

	callID := mine.ID
	c.sched.After(c.cfg.CleanupDelay, func() { c.cleanup(callID, selfID, peerID) })

	c.logger.Info("call ended",
		zap.String("call_id", callID),
		zap.String("ended_by", selfID),
		zap.String("duration", dur),
	)
	return true
}

func (c *Coordinator) writeLogs(selfID, peerID string, typ Type, dur string, at int64) {
	label := typ.Label()
	name, ok := c.log.ContactName(peerID)
	if !ok || name == "" {
		name = "Unknown"
	}

	self := chat.Message{
		SenderID:  chat.Me,
		Text:      fmt.Sprintf("📞 %s call ended (%s)", label, dur),
		CreatedAt: at,
		Status:    chat.StatusSent,
	}
	if _, err := c.log.Append(logTarget(selfID, peerID), self); err != nil {
		c.logger.Warn("failed to write call log", zap.String("contact_id", selfID), zap.Error(err))
	}

	peer := chat.Message{
		SenderID:  peerID,
		Text:      fmt.Sprintf("📞 Missed %s call from %s", label, name),
		CreatedAt: at,
		Status:    chat.StatusDelivered,
	}
	if _, err := c.log.Append(logTarget(peerID, selfID), peer); err != nil {
		c.logger.Warn("failed to write call log", zap.String("contact_id", peerID), zap.Error(err))
	}
}

// logTarget returns the conversation a participant's call log belongs in.
// The local user has no conversation of their own, so their note goes to
// the conversation with the other side.
func logTarget(pid, other string) string {
	if pid == chat.Me {
		return other
	}
	return pid
}

func (c *Coordinator) cleanup(callID string, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pid := range ids {
		if rec, ok := c.calls[pid]; ok && rec.ID == callID {
			c.remove(pid)
		}
	}
}

// ToggleMute flips the caller's own microphone flag.
func (c *Coordinator) ToggleMute(selfID string) (Call, bool) {
	return c.updateOwn(selfID, func(r *Call) { r.MicMuted = !r.MicMuted })
}

// ToggleCam flips the caller's own camera flag.
func (c *Coordinator) ToggleCam(selfID string) (Call, bool) {
	return c.updateOwn(selfID, func(r *Call) { r.CamOff = !r.CamOff })
}

// DockToSide shows the caller's call as a side panel.
func (c *Coordinator) DockToSide(selfID string) (Call, bool) {
	return c.updateOwn(selfID, func(r *Call) { r.Docked = true })
}

// UndockToModal shows the caller's call as a modal.
func (c *Coordinator) UndockToModal(selfID string) (Call, bool) {
	return c.updateOwn(selfID, func(r *Call) { r.Docked = false })
}

func (c *Coordinator) updateOwn(selfID string, fn func(*Call)) (Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.calls[selfID]
	if !ok {
		return Call{}, false
	}
	fn(&rec)
	c.put(selfID, rec)
	return rec, true
}

// Stop cancels the duration ticker. Pending one-shot timers still fire but
// find nothing to do once their call is gone.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopTicker != nil {
		c.stopTicker()
		c.stopTicker = nil
	}
	c.tickerCallID = ""
}

func (c *Coordinator) startTicker(callID string) {
	if c.stopTicker != nil {
		c.stopTicker()
	}
	c.ticks = 0
	c.tickerCallID = callID
	c.stopTicker = c.sched.Every(c.cfg.TickInterval, func() { c.tick(callID) })
}

func (c *Coordinator) stopTickerFor(callID string) {
	if c.tickerCallID != callID || c.stopTicker == nil {
		return
	}
	c.stopTicker()
	c.stopTicker = nil
	c.tickerCallID = ""
}

func (c *Coordinator) tick(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tickerCallID != callID {
		return
	}
	c.ticks++
	c.bus.Emit(bus.KindCallTick, c.sched.Now(), Tick{CallID: callID, Seconds: c.ticks})
}

// transition moves pid's record to status to, applying mutate. Transitions
// outside validTransitions are refused and logged.
func (c *Coordinator) transition(pid string, to Status, mutate func(*Call)) bool {
	rec, ok := c.calls[pid]
	if !ok {
		return false
	}
	if !rec.Status.CanTransition(to) {
		c.logger.Warn("refused call transition",
			zap.String("call_id", rec.ID),
			zap.String("participant", pid),
			zap.String("from", string(rec.Status)),
			zap.String("to", string(to)),
		)
		return false
	}
	rec.Status = to
	if mutate != nil {
		mutate(&rec)
	}
	c.put(pid, rec)
	return true
}

func (c *Coordinator) finish(pid string, at int64) {
	c.transition(pid, Ended, func(r *Call) { r.EndedAt = at })
}

func (c *Coordinator) put(pid string, rec Call) {
	c.calls[pid] = rec
	c.bus.Emit(bus.KindCallChanged, c.sched.Now(), Change{ParticipantID: pid, Call: rec})
}

func (c *Coordinator) remove(pid string) {
	rec := c.calls[pid]
	delete(c.calls, pid)
	c.bus.Emit(bus.KindCallRemoved, c.sched.Now(), Removal{ParticipantID: pid, CallID: rec.ID})
}
