package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/repo"
	"github.com/mf-advisor-core/server/internal/agent/subagents"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// Advisor replies owned by the orchestrator itself.
const (
	Greeting             = "Hello! I'm your Mutual Fund Advisor. I can help you understand your investor profile, plan an investment goal, choose suitable mutual funds and set up a SIP. To do this I'll need to collect some personal and financial details. Do I have your consent to proceed?"
	ConsentGrantedReply  = "Thank you for your consent! Let's start with your profile. What's your name?"
	ConsentDeclinedReply = "I understand. I can only recommend funds after you agree to share some personal and financial details. Just say \"yes\" whenever you're ready to continue."
	ConsentPendingReply  = "Before we begin, I need your consent to collect some personal and financial details for your investment plan. Shall we proceed?"
	ClosingReply         = "Thank you for investing with us! Your SIP request is complete and this session is now closed. Feel free to come back anytime."
	fallbackReply        = "I'm here to help. Could you tell me a little more?"
)

// UserAuthor is the event author for user messages.
const UserAuthor = "user"

var resetWords = []string{"reset", "start over", "restart", "start again", "start fresh"}

// ErrEmptyMessage rejects blank user input.
var ErrEmptyMessage = errors.New("message is empty")

// Config wires an Orchestrator.
type Config struct {
	AppName  string
	Sessions model.SessionRepository
	// Locker serializes turns per session. Defaults to an in-process keyed mutex.
	Locker     model.Locker
	Agents     subagents.Registry
	Metrics    *Metrics
	LLMTimeout time.Duration
	Now        func() time.Time
}

// Orchestrator runs the advisory state machine over stored sessions.
type Orchestrator struct {
	appName  string
	sessions model.SessionRepository
	locker   model.Locker
	agents   subagents.Registry
	metrics  *Metrics
	timeout  time.Duration
	now      func() time.Time
}

// TurnResult is what Send returns to the turn driver.
type TurnResult struct {
	SessionID string
	Reply     string
	// Message is the user message as stored, with credentials masked.
	Message string
	// Agent is the agent that handled the turn.
	Agent model.AgentID
	// Terminated is set when the SIP was initiated and the session deleted.
	Terminated bool
}

// StartResult is what Start and Clear return.
type StartResult struct {
	SessionID string
	// Greeting is set for a newly created session.
	Greeting string
	Resumed  bool
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.AppName == "" {
		return nil, errors.New("orchestrator: app name is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("orchestrator: session repository is required")
	}
	for _, id := range flow {
		if cfg.Agents[id] == nil {
			return nil, fmt.Errorf("orchestrator: sub-agent %s is not registered", id)
		}
	}
	o := &Orchestrator{
		appName:  cfg.AppName,
		sessions: cfg.Sessions,
		locker:   cfg.Locker,
		agents:   cfg.Agents,
		metrics:  cfg.Metrics,
		timeout:  cfg.LLMTimeout,
		now:      cfg.Now,
	}
	if o.locker == nil {
		o.locker = repo.NewKeyedMutex()
	}
	if o.timeout <= 0 {
		o.timeout = 30 * time.Second
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// AppName is the application namespace sessions are stored under.
func (o *Orchestrator) AppName() string { return o.appName }

func (o *Orchestrator) key(userID, sessionID string) model.SessionKey {
	return model.SessionKey{AppName: o.appName, UserID: userID, SessionID: sessionID}
}

// Start resumes the user's most recently updated session, or creates a new one.
func (o *Orchestrator) Start(ctx context.Context, userID string) (*StartResult, error) {
	list, err := o.sessions.List(ctx, o.appName, userID)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		o.metrics.observeSession("resumed")
		logx.Debug().Str("user_id", userID).Str("session_id", list[0].ID).Msg("resuming session")
		return &StartResult{SessionID: list[0].ID, Resumed: true}, nil
	}
	return o.create(ctx, userID, "")
}

// Clear deletes every session of the user and starts a fresh one from the empty template.
func (o *Orchestrator) Clear(ctx context.Context, userID string) (*StartResult, error) {
	list, err := o.sessions.List(ctx, o.appName, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		if err := o.sessions.Delete(ctx, o.key(userID, s.ID)); err != nil {
			return nil, err
		}
	}
	o.metrics.observeSession("cleared")
	logx.Info().Str("user_id", userID).Int("deleted", len(list)).Msg("sessions cleared")
	return o.create(ctx, userID, "")
}

// create stores an empty-template session whose event log opens with the greeting.
func (o *Orchestrator) create(ctx context.Context, userID, sessionID string) (*StartResult, error) {
	raw, err := model.NewState().Encode()
	if err != nil {
		return nil, err
	}
	sess, err := o.sessions.CreateOrReplace(ctx, o.appName, userID, sessionID, raw)
	if err != nil {
		return nil, err
	}
	sess.Events = append(sess.Events, model.Event{Author: model.AgentAdvisor.String(), Text: Greeting, Timestamp: o.now().UTC()})
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	o.metrics.observeSession("created")
	logx.Info().Str("user_id", userID).Str("session_id", sess.ID).Msg("session created")
	return &StartResult{SessionID: sess.ID, Greeting: Greeting}, nil
}

// History returns the session's event log. A missing session has no history.
func (o *Orchestrator) History(ctx context.Context, userID, sessionID string) ([]model.Event, error) {
	sess, err := o.sessions.Get(ctx, o.key(userID, sessionID))
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return []model.Event{}, nil
		}
		return nil, err
	}
	if sess.Events == nil {
		return []model.Event{}, nil
	}
	return sess.Events, nil
}

// State returns the decoded state of a session.
func (o *Orchestrator) State(ctx context.Context, userID, sessionID string) (*model.State, error) {
	sess, err := o.sessions.Get(ctx, o.key(userID, sessionID))
	if err != nil {
		return nil, err
	}
	return model.DecodeState(sess.State)
}

// Send handles one user message. Turns of the same session never overlap.
// Nothing is written when ctx is cancelled before the turn completes.
func (o *Orchestrator) Send(ctx context.Context, userID, sessionID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errx.Validation(ErrEmptyMessage)
	}
	key := o.key(userID, sessionID)

	unlock, err := o.locker.Lock(ctx, key.String())
	if err != nil {
		return nil, errx.Transport(fmt.Errorf("lock session %s: %w", key, err), "")
	}
	defer unlock()

	sess, err := o.sessions.Get(ctx, key)
	if errors.Is(err, repo.ErrSessionNotFound) {
		logx.Info().Str("session_id", sessionID).Str("user_id", userID).Msg("session not found, creating")
		raw, encErr := model.NewState().Encode()
		if encErr != nil {
			return nil, encErr
		}
		if sess, err = o.sessions.CreateOrReplace(ctx, o.appName, userID, sessionID, raw); err == nil {
			o.metrics.observeSession("created")
		}
	}
	if err != nil {
		return nil, err
	}

	state, err := model.DecodeState(sess.State)
	if err != nil {
		if !errx.IsKind(err, errx.KindStateCorruption) {
			return nil, err
		}
		return o.recoverCorrupted(ctx, sess, message, err)
	}
	return o.turn(ctx, sess, state, message)
}

// recoverCorrupted answers a turn on a session whose stored state cannot be trusted.
// The session is only rewritten when the user asks for a reset.
func (o *Orchestrator) recoverCorrupted(ctx context.Context, sess *model.Session, message string, cause error) (*TurnResult, error) {
	logx.Error().Err(cause).Str("session_id", sess.ID).Str("user_id", sess.UserID).Msg("stored state is corrupted")
	if !containsAny(message, resetWords...) {
		o.metrics.observeTurn(model.AgentAdvisor, OutcomeCorrupted)
		return &TurnResult{SessionID: sess.ID, Reply: errx.ReplyCorrupted, Message: subagents.MaskSecrets(message), Agent: model.AgentAdvisor}, nil
	}
	res, err := o.create(ctx, sess.UserID, sess.ID)
	if err != nil {
		return nil, err
	}
	o.metrics.observeSession("reset")
	return &TurnResult{SessionID: res.SessionID, Reply: res.Greeting, Message: subagents.MaskSecrets(message), Agent: model.AgentAdvisor}, nil
}

func (o *Orchestrator) turn(ctx context.Context, sess *model.Session, state *model.State, message string) (*TurnResult, error) {
	now := o.now().UTC()
	prior := append([]model.Interaction(nil), state.InteractionHistory...)
	state.AppendInteraction(UserAuthor, model.ActionUserQuery, message, now)

	route := Select(o.agents, state)
	var (
		next    = state
		reply   string
		outcome string
		stored  = message
	)
	switch {
	case route.Terminal:
		reply, outcome = ClosingReply, OutcomeCompleted
	case route.Agent == model.AgentAdvisor:
		reply = o.consent(state, message)
		outcome = OutcomeConsent
	default:
		d, err := o.delegate(ctx, sess, state, prior, message, route.Agent, now)
		if err != nil {
			return nil, err
		}
		next, reply, outcome, stored = d.next, d.reply, d.outcome, d.stored
		next.InteractionHistory[len(prior)].Payload = stored
	}

	terminal := route.Terminal || Select(o.agents, next).Terminal
	if terminal && !route.Terminal {
		reply = reply + "\n\n" + ClosingReply
		outcome = OutcomeCompleted
	}
	next.AppendInteraction(route.Agent.String(), model.ActionAgentResponse, reply, now)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &TurnResult{SessionID: sess.ID, Reply: reply, Message: stored, Agent: route.Agent, Terminated: terminal}
	o.metrics.observeTurn(route.Agent, outcome)

	if terminal {
		if err := o.sessions.Delete(ctx, sess.Key()); err != nil {
			return nil, err
		}
		o.metrics.observeSession("completed")
		logx.Info().Str("session_id", sess.ID).Str("user_id", sess.UserID).Msg("sip initiated, session closed")
		return result, nil
	}

	raw, err := next.Encode()
	if err != nil {
		return nil, err
	}
	sess.State = raw
	sess.Events = append(sess.Events,
		model.Event{Author: UserAuthor, Text: stored, Timestamp: now},
		model.Event{Author: model.AgentAdvisor.String(), Text: reply, Timestamp: now},
	)
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return result, nil
}

// consent handles the gate that precedes any delegation.
func (o *Orchestrator) consent(s *model.State, message string) string {
	switch {
	case subagents.IsAffirmative(message):
		s.ConsentGiven = true
		setStatus(s, model.AgentUserProfile, ConsentGrantedReply)
		return ConsentGrantedReply
	case subagents.IsNegative(message):
		setStatus(s, model.AgentAdvisor, ConsentDeclinedReply)
		return ConsentDeclinedReply
	default:
		setStatus(s, model.AgentAdvisor, ConsentPendingReply)
		return ConsentPendingReply
	}
}

// delegation is the outcome of one sub-agent turn.
type delegation struct {
	next    *model.State
	reply   string
	outcome string
	// stored is the user message as it may be persisted.
	stored string
}

// delegate runs one sub-agent and merges its updates. A failed or rejected turn
// returns the unmerged state with current_agent unchanged.
// o.timeout bounds each model call; portal calls run under the client timeout.
func (o *Orchestrator) delegate(ctx context.Context, sess *model.Session, state *model.State, prior []model.Interaction, message string, id model.AgentID, now time.Time) (*delegation, error) {
	agent := o.agents[id]
	started := time.Now()
	res, err := agent.Act(ctx, subagents.Turn{
		SessionID:         sess.ID,
		State:             state.Clone(),
		Message:           message,
		History:           prior,
		Now:               now,
		CompletionTimeout: o.timeout,
	})
	o.metrics.observeAgent(id, time.Since(started))

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	d := &delegation{next: state, stored: storedMessage(agent, message, res, err)}
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sess.ID).Str("agent", id.String()).Msg("sub-agent failed")
		d.reply, d.outcome = errx.ReplyRetry, OutcomeRetry
		return d, nil
	}
	if len(res.Problems) > 0 {
		logx.Info().Str("session_id", sess.ID).Str("agent", id.String()).Strs("fields", res.Problems.Fields()).Msg("sub-agent reported invalid input")
		d.reply, d.outcome = clarification(res.Problems), OutcomeClarify
		return d, nil
	}

	next, err := Merge(o.agents, id, state, res.Updates)
	if err != nil {
		var verrs model.ValidationErrors
		if !errors.As(err, &verrs) {
			logx.Error().Err(err).Str("session_id", sess.ID).Msg("merge failed")
			d.reply, d.outcome = errx.ReplyRetry, OutcomeRetry
			return d, nil
		}
		logx.Info().Str("session_id", sess.ID).Str("agent", id.String()).Str("errors", verrs.Error()).Msg("updates rejected")
		d.reply, d.outcome = clarification(verrs), OutcomeClarify
		return d, nil
	}

	reply := strings.TrimSpace(res.Reply)
	if reply == "" {
		reply = fallbackReply
	}
	setStatus(next, id, reply)
	logx.Info().Str("session_id", sess.ID).Str("agent", id.String()).Strs("sections", sectionNames(res.Updates)).Msg("turn merged")
	d.next, d.reply, d.outcome = next, reply, OutcomeOK
	return d, nil
}

// storedMessage picks the form of the user message that may be persisted for this turn.
func storedMessage(agent subagents.SubAgent, message string, res *subagents.Result, err error) string {
	if res != nil && res.Redacted != "" {
		return res.Redacted
	}
	var re *subagents.RedactedError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	if r, ok := agent.(subagents.Redactor); ok {
		return r.Redact(message)
	}
	return message
}

// setStatus records the active agent; previous_agent becomes the prior current agent.
func setStatus(s *model.State, active model.AgentID, reply string) {
	prev := s.CurrentAgentStatus.CurrentAgent
	s.CurrentAgentStatus = model.AgentStatus{
		CurrentAgent:      active,
		PreviousAgent:     prev,
		NextExpectedInput: model.NextExpectedInput[active],
		LastAgentResponse: reply,
	}
}

// clarification turns field errors into an advisor sentence without exposing internal names.
func clarification(errs model.ValidationErrors) string {
	var parts []string
	for _, e := range errs {
		if e.Field == "" || strings.HasPrefix(e.Field, "[") {
			continue
		}
		parts = append(parts, strings.ReplaceAll(e.Field, "_", " ")+" "+e.Message)
	}
	if len(parts) == 0 {
		return errx.ReplyClarify
	}
	return "I couldn't use some of that information: " + strings.Join(parts, "; ") + ". Could you please check and share it again?"
}

func sectionNames(u model.Updates) []string {
	out := make([]string, 0, len(u))
	for _, s := range u.Sections() {
		out = append(out, string(s))
	}
	return out
}

func containsAny(s string, needles ...string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
