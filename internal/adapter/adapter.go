// Package adapter implements the Event Adapter (C8) from spec.md §4.8:
// it translates raw transport events into the typed events the rest of
// the core reacts to, running the macro expander and parser on message
// text and applying the meme and auto-whitelist rules along the way.
package adapter

import (
	"strings"
	"sync"

	"github.com/flexer23/TRTwitchPlaysBot/internal/chatloop"
	"github.com/flexer23/TRTwitchPlaysBot/internal/controllermgr"
	"github.com/flexer23/TRTwitchPlaysBot/internal/exec"
	"github.com/flexer23/TRTwitchPlaysBot/internal/macro"
	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
	"github.com/flexer23/TRTwitchPlaysBot/internal/monitor"
	"github.com/flexer23/TRTwitchPlaysBot/internal/parse"
	"github.com/flexer23/TRTwitchPlaysBot/internal/transport"
)

// UserSentMessage fires for every chat message the adapter processes,
// whether or not it turned out to be an input.
type UserSentMessage struct {
	User *model.User
	Text string
}

// UserMadeInput fires when a message parsed as a playable input
// sequence and was handed to the executor.
type UserMadeInput struct {
	User     *model.User
	Sequence model.InputSequence
}

// UserRegistry is the narrow slice of store.Store the adapter needs to
// look up or create users, kept separate so tests can fake it cheaply.
type UserRegistry interface {
	LoadUser(name string) (*model.User, error)
	SaveUser(u *model.User) error
}

// Config bundles the adapter's collaborators and tunables.
type Config struct {
	DefaultPort int

	AutoWhitelistEnabled    bool
	AutoWhitelistInputCount int64
	AutoWhitelistMsg        string // %s is replaced with the user's name

	// PortNotAcquiredMsg is sent as a diagnostic when a valid sequence
	// targets a port that is out of range or degraded.
	PortNotAcquiredMsg string
}

// Adapter wires a transport.Dispatcher's MessageReceived events through
// user lookup, the meme map, the macro expander, the parser and finally
// the executor.
type Adapter struct {
	cfg Config

	users    UserRegistry
	memes    *memeTable
	expander *macro.Expander
	parser   *parse.Parser
	mgr      *controllermgr.Manager
	executor *exec.Executor
	loop     *chatloop.Loop
	monitor  *monitor.Hub // optional; nil disables telemetry publishing

	mu        sync.Mutex
	onMessage []func(UserSentMessage)
	onInput   []func(UserMadeInput)
	userCache map[string]*model.User
}

// New builds an Adapter. Outbound replies (meme hits, diagnostics,
// auto-whitelist announcements) are enqueued on loop for the channel
// passed to HandleMessage.
func New(cfg Config, users UserRegistry, memes map[string]string, expander *macro.Expander, parser *parse.Parser, mgr *controllermgr.Manager, executor *exec.Executor, loop *chatloop.Loop) *Adapter {
	return &Adapter{
		cfg:       cfg,
		users:     users,
		memes:     newMemeTable(memes),
		expander:  expander,
		parser:    parser,
		mgr:       mgr,
		executor:  executor,
		loop:      loop,
		userCache: make(map[string]*model.User),
	}
}

// WithMonitor attaches a live-input telemetry hub; every dispatched
// sequence is published to it as it starts and again once it finishes.
func (a *Adapter) WithMonitor(hub *monitor.Hub) *Adapter {
	a.monitor = hub
	return a
}

// OnUserSentMessage registers a callback fired after every processed
// chat message.
func (a *Adapter) OnUserSentMessage(fn func(UserSentMessage)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMessage = append(a.onMessage, fn)
}

// OnUserMadeInput registers a callback fired whenever a message parses
// to a playable input sequence.
func (a *Adapter) OnUserMadeInput(fn func(UserMadeInput)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onInput = append(a.onInput, fn)
}

// HandleMessage runs the full C8 pipeline over one chat message. It is
// safe to call directly from a test, or to wire as a
// transport.Dispatcher.OnMessageReceived handler.
func (a *Adapter) HandleMessage(channel string, ev transport.MessageReceived) {
	user := a.lookupOrCreateUser(ev.User)
	user.RecordMessage()
	a.saveUser(user)

	a.fireUserSentMessage(UserSentMessage{User: user, Text: ev.Text})

	if reply, hit := a.memes.Lookup(ev.Text); hit {
		a.loop.Enqueue(channel, reply)
	}

	expanded, err := a.expander.Expand(ev.Text)
	if err != nil {
		// Malformed macro invocations are silently treated as non-input
		// chat the way any other unrecognized text is; spec.md's
		// NormalMsg path already covers "this wasn't an input".
		return
	}

	seq := a.parser.Parse(expanded, user.Level, a.portFor(user))
	if seq.Result != model.Valid {
		return
	}

	user.RecordValidInput()

	port := a.portFor(user)
	if port < 0 || port >= a.mgr.Count() || a.mgr.IsDegraded(port) {
		if a.cfg.PortNotAcquiredMsg != "" {
			a.loop.Enqueue(channel, a.cfg.PortNotAcquiredMsg)
		}
		a.saveUser(user)
		return
	}

	token, outcomeCh, err := a.executor.CarryOut(user.Name, seq, port)
	if err != nil {
		if a.cfg.PortNotAcquiredMsg != "" {
			a.loop.Enqueue(channel, a.cfg.PortNotAcquiredMsg)
		}
	} else {
		a.publishDispatchTelemetry(user, port, seq, token, outcomeCh)
	}

	a.applyAutoWhitelist(channel, user)
	a.saveUser(user)
	a.fireUserMadeInput(UserMadeInput{User: user, Sequence: seq})
}

// publishDispatchTelemetry fires a "start" frame immediately and a
// "finish" frame once the executor reports how the sequence ended. A nil
// monitor hub makes both a no-op beyond the goroutine drain.
func (a *Adapter) publishDispatchTelemetry(user *model.User, port int, seq model.InputSequence, token *exec.CancelToken, outcomeCh <-chan exec.Outcome) {
	if a.monitor != nil {
		a.monitor.Publish(monitor.Frame{
			Type:       "dispatch",
			SequenceID: token.ID.String(),
			User:       user.Name,
			Port:       port,
			Raw:        seq.Raw,
			Result:     seq.Result.String(),
		})
	}

	go func() {
		outcome, ok := <-outcomeCh
		if !ok || a.monitor == nil {
			return
		}
		a.monitor.Publish(monitor.Frame{
			Type:       "outcome",
			SequenceID: token.ID.String(),
			User:       user.Name,
			Port:       port,
			Outcome:    outcome.String(),
		})
	}()
}

func (a *Adapter) portFor(u *model.User) int {
	if u.Port >= 0 {
		return u.Port
	}
	return a.cfg.DefaultPort
}

func (a *Adapter) applyAutoWhitelist(channel string, u *model.User) {
	a.mu.Lock()
	enabled := a.cfg.AutoWhitelistEnabled
	threshold := a.cfg.AutoWhitelistInputCount
	msg := a.cfg.AutoWhitelistMsg
	a.mu.Unlock()

	if !enabled {
		return
	}
	if !u.EligibleForAutoWhitelist(threshold) {
		return
	}
	u.PromoteAutoWhitelist()
	if msg != "" {
		a.loop.Enqueue(channel, strings.ReplaceAll(msg, "%s", u.Name))
	}
}

// UpdateAutoWhitelist live-updates the auto-whitelist tunables, e.g.
// from a config.Watcher hot-reload callback. Safe to call from any
// goroutine.
func (a *Adapter) UpdateAutoWhitelist(enabled bool, count int64, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.AutoWhitelistEnabled = enabled
	a.cfg.AutoWhitelistInputCount = count
	a.cfg.AutoWhitelistMsg = msg
}

func (a *Adapter) lookupOrCreateUser(name string) *model.User {
	name = strings.ToLower(strings.TrimSpace(name))

	a.mu.Lock()
	if u, ok := a.userCache[name]; ok {
		a.mu.Unlock()
		return u
	}
	a.mu.Unlock()

	u, err := a.users.LoadUser(name)
	if err != nil || u == nil {
		u = model.NewUser(name, a.cfg.DefaultPort)
	}

	a.mu.Lock()
	a.userCache[name] = u
	a.mu.Unlock()
	return u
}

func (a *Adapter) saveUser(u *model.User) {
	_ = a.users.SaveUser(u)
}

func (a *Adapter) fireUserSentMessage(ev UserSentMessage) {
	a.mu.Lock()
	handlers := append([]func(UserSentMessage){}, a.onMessage...)
	a.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (a *Adapter) fireUserMadeInput(ev UserMadeInput) {
	a.mu.Lock()
	handlers := append([]func(UserMadeInput){}, a.onInput...)
	a.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// memeTable is a lowercase-exact-match trigger -> response lookup, per
// spec.md §4.8.
type memeTable struct {
	mu   sync.RWMutex
	data map[string]string
}

func newMemeTable(initial map[string]string) *memeTable {
	t := &memeTable{data: make(map[string]string, len(initial))}
	for k, v := range initial {
		t.data[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return t
}

func (t *memeTable) Lookup(text string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	reply, ok := t.data[strings.ToLower(strings.TrimSpace(text))]
	return reply, ok
}

func (t *memeTable) Set(trigger, response string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[strings.ToLower(strings.TrimSpace(trigger))] = response
}

func (t *memeTable) Delete(trigger string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, strings.ToLower(strings.TrimSpace(trigger)))
}
