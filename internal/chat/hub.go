package chat

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type eventKind int

const (
	evClaim eventKind = iota
	evRelease
	evPublic
	evWhisper
	evEmote
	evList
)

type event struct {
	kind   eventKind
	sess   *Session
	name   string // desired nickname, or whisper target
	text   string
	reason string
	reply  chan error // claim ack
}

// Hub is the single owner of the nickname registry and the broadcast engine.
// All mutations happen on the Run goroutine, so claim/release/lookup are
// linearizable without a lock, and every fan-out iterates a map no one else
// can touch mid-flight.
type Hub struct {
	events chan event
	stopCh chan struct{}
	doneCh chan struct{}
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events: make(chan event, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

// Stop signals the Run loop to exit.
func (h *Hub) Stop() {
	close(h.stopCh)
}

// Wait blocks until the Run loop has completely finished.
func (h *Hub) Wait() {
	<-h.doneCh
}

func (h *Hub) Run() {
	defer close(h.doneCh)
	// Single-writer ownership: keyed by the case-folded nickname and only
	// accessed in this goroutine. Values are the sessions' display names.
	names := make(map[string]*Session)

	for {
		select {
		case ev := <-h.events:
			start := time.Now()
			eventType := ""

			switch ev.kind {
			case evClaim:
				eventType = "claim"
				h.handleClaim(names, ev)
				RegisteredNicknames.Set(float64(len(names)))
			case evRelease:
				eventType = "release"
				h.handleRelease(names, ev)
				RegisteredNicknames.Set(float64(len(names)))
			case evPublic:
				eventType = "public"
				h.handlePublic(names, ev)
			case evWhisper:
				eventType = "whisper"
				h.handleWhisper(names, ev)
			case evEmote:
				eventType = "emote"
				h.handleEmote(names, ev)
			case evList:
				eventType = "list"
				h.handleList(names, ev)
			}

			MessagesTotal.WithLabelValues(eventType).Inc()
			EventProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		case <-h.stopCh:
			return
		}
	}
}

// post hands an event to the Run loop unless the hub is stopping.
func (h *Hub) post(ev event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.stopCh:
		return false
	}
}

// Claim atomically binds the desired nickname to the session, releasing its
// previous one on success. Uniqueness is case-insensitive; the display form
// keeps the case the client typed.
func (h *Hub) Claim(s *Session, name string) error {
	reply := make(chan error, 1)
	if !h.post(event{kind: evClaim, sess: s, name: name, reply: reply}) {
		return ErrServerClosed
	}
	select {
	case err := <-reply:
		return err
	case <-h.doneCh:
		return ErrServerClosed
	}
}

// Release drops the session's nickname binding, if any. Idempotent.
func (h *Hub) Release(s *Session, reason string) {
	h.post(event{kind: evRelease, sess: s, reason: reason})
}

// Public broadcasts a public message from the session to everyone registered,
// the sender included.
func (h *Hub) Public(s *Session, text string) {
	h.post(event{kind: evPublic, sess: s, text: text})
}

// Whisper delivers a private message to a single nickname.
func (h *Hub) Whisper(s *Session, to, text string) {
	h.post(event{kind: evWhisper, sess: s, name: to, text: text})
}

// Emote broadcasts an action line ("* nick waves") to everyone registered.
func (h *Hub) Emote(s *Session, action string) {
	h.post(event{kind: evEmote, sess: s, text: action})
}

// List replies to the session with the current user list.
func (h *Hub) List(s *Session) {
	h.post(event{kind: evList, sess: s})
}

func validNickname(name string) bool {
	if name == "" || len(name) > 32 {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func (h *Hub) handleClaim(names map[string]*Session, ev event) {
	if !validNickname(ev.name) {
		ev.reply <- ErrNameInvalid
		return
	}
	fold := strings.ToLower(ev.name)
	if cur, ok := names[fold]; ok && cur != ev.sess {
		ev.reply <- ErrNameTaken
		return
	}

	old := ev.sess.Nickname()
	if old != "" {
		delete(names, strings.ToLower(old))
	}
	names[fold] = ev.sess
	ev.sess.setNickname(ev.name)

	now := time.Now()
	if old == "" {
		h.logger.Info("nick set", "nick", ev.name, "peer", ev.sess.peer())
		h.broadcast(names, Message{Kind: KindSystem, Text: ev.name + " joined the chat", Time: now}, nil)
	} else {
		h.logger.Info("nick change", "old", old, "new", ev.name)
		h.broadcast(names, Message{Kind: KindSystem, Text: old + " is now known as " + ev.name, Time: now}, nil)
	}
	ev.reply <- nil
}

func (h *Hub) handleRelease(names map[string]*Session, ev event) {
	nick := ev.sess.Nickname()
	if nick == "" {
		return
	}
	fold := strings.ToLower(nick)
	if names[fold] != ev.sess {
		return // already released
	}
	delete(names, fold)

	h.logger.Info("user left", "nick", nick, "reason", ev.reason)
	h.broadcast(names, Message{Kind: KindSystem, Text: nick + " left (" + ev.reason + ")", Time: time.Now()}, ev.sess)
}

func (h *Hub) handlePublic(names map[string]*Session, ev event) {
	nick := ev.sess.Nickname()
	if nick == "" {
		ev.sess.sendError(clientText(ErrNickRequired))
		return
	}
	h.logger.Info("public message", "from", nick, "len", len(ev.text))
	h.broadcast(names, Message{Kind: KindPublic, Sender: nick, Text: ev.text, Time: time.Now()}, nil)
}

func (h *Hub) handleEmote(names map[string]*Session, ev event) {
	nick := ev.sess.Nickname()
	if nick == "" {
		ev.sess.sendError(clientText(ErrNickRequired))
		return
	}
	h.logger.Info("emote", "nick", nick, "action", ev.text)
	h.broadcast(names, Message{Kind: KindAction, Sender: nick, Text: ev.text, Time: time.Now()}, nil)
}

func (h *Hub) handleWhisper(names map[string]*Session, ev event) {
	nick := ev.sess.Nickname()
	if nick == "" {
		ev.sess.sendError(clientText(ErrNickRequired))
		return
	}
	target, ok := names[strings.ToLower(ev.name)]
	if !ok {
		h.logger.Info("pm target not found", "from", nick, "to", ev.name)
		ev.sess.sendError("User '" + ev.name + "' not found.")
		return
	}

	h.logger.Info("pm sent", "from", nick, "to", target.Nickname(), "len", len(ev.text))
	target.send(Message{Kind: KindPrivate, Sender: nick, Target: target.Nickname(), Text: ev.text, Time: time.Now()})
	ev.sess.push("[PM -> " + target.Nickname() + "] " + ev.text)
}

func (h *Hub) handleList(names map[string]*Session, ev event) {
	users := make([]string, 0, len(names))
	for _, s := range names {
		users = append(users, s.Nickname())
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i]) < strings.ToLower(users[j])
	})
	ev.sess.push("Users (" + strconv.Itoa(len(users)) + "): " + strings.Join(users, ", "))
}

// broadcast enqueues the rendered message on every registered session's
// output queue, minus the excluded session if any. The map itself is the
// point-in-time snapshot: only this goroutine mutates it, and a closed
// session's queue silently refuses the push, so slow or departing readers
// never stall the loop.
func (h *Hub) broadcast(names map[string]*Session, m Message, exclude *Session) {
	line := m.Render()
	for _, s := range names {
		if s == exclude {
			continue
		}
		s.push(line)
	}
}
