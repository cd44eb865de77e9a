package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/ganot/rpstage/internal/repository"
	"github.com/google/uuid"
)

// Limits bounds the two message logs.
type Limits struct {
	MaxChat int
	MaxOOC  int
}

// DefaultLimits returns the standard log capacities.
func DefaultLimits() Limits {
	return Limits{MaxChat: DefaultMaxChat, MaxOOC: DefaultMaxOOC}
}

// ProtectedSessionFields can only be changed through their dedicated operations.
var ProtectedSessionFields = []string{"bestiary", legacyBestiaryKey}

// Stats summarises the store for health reporting.
type Stats struct {
	Sessions int
	Players  int
	Chat     int
	OOC      int
}

// Store owns the bundle. It is not safe for concurrent use; callers
// serialize access.
type Store struct {
	repo      SnapshotRepository
	key       string
	limits    Limits
	protected []string
	logger    *slog.Logger
	now       func() time.Time

	bundle *Bundle
	lastID int64
}

// Option configures a Store.
type Option func(*Store)

// WithLimits overrides the log capacities.
func WithLimits(l Limits) Option {
	return func(s *Store) {
		if l.MaxChat > 0 {
			s.limits.MaxChat = l.MaxChat
		}
		if l.MaxOOC > 0 {
			s.limits.MaxOOC = l.MaxOOC
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the wall clock used for message ids and timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithProtectedFields replaces the set of session fields a merge may not touch.
func WithProtectedFields(fields ...string) Option {
	return func(s *Store) { s.protected = fields }
}

// NewStore creates a store holding the default bundle. Call Load to restore
// persisted state.
func NewStore(repo SnapshotRepository, key string, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		key:       key,
		limits:    DefaultLimits(),
		protected: ProtectedSessionFields,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.install(DefaultBundle())
	return s
}

// Load restores the last snapshot. A missing snapshot is replaced by the
// default bundle, which is written back; an unreadable one is replaced by the
// default bundle without overwriting the stored data.
func (s *Store) Load(ctx context.Context) *Bundle {
	data, err := s.repo.Load(ctx, s.key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Info("no snapshot found, starting from defaults", "key", s.key)
		s.install(DefaultBundle())
		if err := s.Persist(ctx); err != nil {
			s.logger.Warn("failed to write default snapshot", "key", s.key, "error", err)
		}
		return s.bundle
	case err != nil:
		s.logger.Warn("failed to read snapshot, using defaults", "key", s.key, "error", err)
		s.install(DefaultBundle())
		return s.bundle
	}

	b, legacy, err := DecodeBundle(data)
	if err != nil {
		s.logger.Warn("snapshot rejected, using defaults", "key", s.key, "error", err)
		s.install(DefaultBundle())
		return s.bundle
	}
	s.install(b)
	s.logger.Info("snapshot restored",
		"key", s.key,
		"legacy", legacy,
		"sessions", len(b.Sessions),
		"chat", len(b.Chat),
		"ooc", len(b.OOC),
	)
	return s.bundle
}

// Bundle returns the live bundle.
func (s *Store) Bundle() *Bundle { return s.bundle }

// Current returns the current session.
func (s *Store) Current() *Session { return s.bundle.Sessions[s.bundle.Current] }

// Turns returns the live turn state.
func (s *Store) Turns() *TurnSystem { return &s.bundle.Turns }

// Clock returns the live clock.
func (s *Store) Clock() *Clock { return &s.bundle.Clock }

// RosterSize returns the number of characters in the current session.
func (s *Store) RosterSize() int { return len(s.Current().Players) }

// Stats returns sizes for health reporting.
func (s *Store) Stats() Stats {
	return Stats{
		Sessions: len(s.bundle.Sessions),
		Players:  s.RosterSize(),
		Chat:     len(s.bundle.Chat),
		OOC:      len(s.bundle.OOC),
	}
}

// AppendMessage stores msg in the chosen log, assigning an id and timestamp
// when absent, and evicts the oldest entries beyond capacity.
func (s *Store) AppendMessage(log LogKind, msg Message) Message {
	if msg.ID == 0 {
		msg.ID = s.nextID()
	} else if msg.ID > s.lastID {
		s.lastID = msg.ID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	switch log {
	case OOCLog:
		s.bundle.OOC = appendBounded(s.bundle.OOC, msg, s.limits.MaxOOC)
	default:
		s.bundle.Chat = appendBounded(s.bundle.Chat, msg, s.limits.MaxChat)
	}
	return msg
}

// Recent returns a copy of the last n entries of a log; n <= 0 means all.
func (s *Store) Recent(log LogKind, n int) []Message {
	src := s.bundle.Chat
	if log == OOCLog {
		src = s.bundle.OOC
	}
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	return append([]Message{}, src...)
}

// ClearLog empties a log.
func (s *Store) ClearLog(log LogKind) {
	if log == OOCLog {
		s.bundle.OOC = []Message{}
		return
	}
	s.bundle.Chat = []Message{}
}

// MergeSessionFields deep-merges partial into the current session. Protected
// fields are ignored even when present in partial.
func (s *Store) MergeSessionFields(partial map[string]any) error {
	current := s.Current()
	existing, err := toMap(current)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	merged := Merge(existing, partial, s.protected...)

	var next Session
	if err := fromMap(merged, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	next.Clock = current.Clock
	*current = next
	s.normalizeSession(current)
	s.clampTurns()
	return nil
}

// AddCharacter appends a character built from data over the default fields.
// The character gets a fresh id whatever data contains.
func (s *Store) AddCharacter(data map[string]any) (Character, int, error) {
	base := map[string]any{"name": "New character", "hp": 100, "maxHp": 100}
	var c Character
	if err := fromMap(Merge(base, data, "id"), &c); err != nil {
		return Character{}, -1, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	c.ID = uuid.NewString()
	sess := s.Current()
	sess.Players = append(sess.Players, c)
	return c, len(sess.Players) - 1, nil
}

// RemoveCharacter deletes the character at index and renumbers the turn state
// so it keeps pointing at the same characters.
func (s *Store) RemoveCharacter(index int) (Character, error) {
	sess := s.Current()
	if index < 0 || index >= len(sess.Players) {
		return Character{}, ErrCharacterNotFound
	}
	removed := sess.Players[index]
	sess.Players = append(sess.Players[:index:index], sess.Players[index+1:]...)

	t := &s.bundle.Turns
	played := t.PlayedThisRound[:0]
	for _, p := range t.PlayedThisRound {
		switch {
		case p < index:
			played = append(played, p)
		case p > index:
			played = append(played, p-1)
		}
	}
	t.PlayedThisRound = played
	if index < t.CurrentTurn {
		t.CurrentTurn--
	}
	s.clampTurns()
	return removed, nil
}

// UpdateCharacter merges fields into the character at index. The id cannot
// be changed.
func (s *Store) UpdateCharacter(index int, fields map[string]any) (Character, error) {
	sess := s.Current()
	if index < 0 || index >= len(sess.Players) {
		return Character{}, ErrCharacterNotFound
	}
	current := sess.Players[index]
	existing, err := toMap(current)
	if err != nil {
		return Character{}, fmt.Errorf("encoding character: %w", err)
	}
	var next Character
	if err := fromMap(Merge(existing, fields, "id"), &next); err != nil {
		return Character{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	next.ID = current.ID
	sess.Players[index] = next
	return next, nil
}

// CharacterAt returns the character at index.
func (s *Store) CharacterAt(index int) (Character, bool) {
	players := s.Current().Players
	if index < 0 || index >= len(players) {
		return Character{}, false
	}
	return players[index], true
}

// IndexOf returns the roster position of the character with id, or -1.
func (s *Store) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.Current().Players {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Roster returns a copy of the current roster.
func (s *Store) Roster() []Character {
	return append([]Character{}, s.Current().Players...)
}

// UpdateNPC replaces one bestiary entry.
func (s *Store) UpdateNPC(faction string, index int, npc NPC) error {
	list, ok := s.Current().Bestiary[faction]
	if !ok {
		return ErrFactionNotFound
	}
	if index < 0 || index >= len(list) {
		return ErrNPCNotFound
	}
	list[index] = npc
	return nil
}

// AddNPC appends npc to a faction, creating the faction if needed.
func (s *Store) AddNPC(faction string, npc NPC) (int, error) {
	if faction == "" {
		return -1, fmt.Errorf("%w: empty faction", ErrInvalidInput)
	}
	sess := s.Current()
	if sess.Bestiary == nil {
		sess.Bestiary = NewSession("").Bestiary
	}
	sess.Bestiary[faction] = append(sess.Bestiary[faction], npc)
	return len(sess.Bestiary[faction]) - 1, nil
}

// RemoveNPC deletes one bestiary entry.
func (s *Store) RemoveNPC(faction string, index int) (NPC, error) {
	sess := s.Current()
	list, ok := sess.Bestiary[faction]
	if !ok {
		return NPC{}, ErrFactionNotFound
	}
	if index < 0 || index >= len(list) {
		return NPC{}, ErrNPCNotFound
	}
	removed := list[index]
	sess.Bestiary[faction] = append(list[:index:index], list[index+1:]...)
	return removed, nil
}

// SetClock replaces the clock.
func (s *Store) SetClock(c Clock) error {
	if c.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidInput)
	}
	if c.Round < 1 {
		c.Round = s.bundle.Turns.RoundNumber
	}
	s.bundle.Clock = c
	return nil
}

// Replace installs a decoded snapshot. A wrapped record replaces the whole
// bundle; a bare sessions map replaces only the sessions.
func (s *Store) Replace(data []byte) error {
	b, legacy, err := DecodeBundle(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if legacy {
		prev := s.bundle
		prev.Sessions = b.Sessions
		prev.Current = b.Current
		b = prev
	}
	s.install(b)
	return nil
}

// Encode serializes the bundle.
func (s *Store) Encode() ([]byte, error) {
	if cur := s.Current(); cur != nil {
		cur.Clock = s.bundle.Clock
	}
	data, err := json.MarshalIndent(s.bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return data, nil
}

// SessionsJSON serializes only the sessions map.
func (s *Store) SessionsJSON() ([]byte, error) {
	if cur := s.Current(); cur != nil {
		cur.Clock = s.bundle.Clock
	}
	data, err := json.MarshalIndent(s.bundle.Sessions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding sessions: %w", err)
	}
	return data, nil
}

// Persist writes the bundle synchronously.
func (s *Store) Persist(ctx context.Context) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func (s *Store) install(b *Bundle) {
	s.normalize(b)
	s.bundle = b
	s.clampTurns()
}

func (s *Store) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// normalize repairs a freshly decoded bundle so every invariant holds.
func (s *Store) normalize(b *Bundle) {
	if b.Sessions == nil {
		b.Sessions = map[string]*Session{}
	}
	if _, ok := b.Sessions[b.Current]; !ok {
		keys := make([]string, 0, len(b.Sessions))
		for k := range b.Sessions {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		if len(keys) == 0 {
			b.Sessions[DefaultSessionKey] = NewSession(DefaultSessionTitle)
			keys = append(keys, DefaultSessionKey)
		}
		b.Current = keys[0]
	}
	for _, sess := range b.Sessions {
		s.normalizeSession(sess)
	}

	b.Chat = trimLog(b.Chat, s.limits.MaxChat)
	b.OOC = trimLog(b.OOC, s.limits.MaxOOC)
	s.lastID = 0
	for _, log := range [][]Message{b.Chat, b.OOC} {
		for _, m := range log {
			if m.ID > s.lastID {
				s.lastID = m.ID
			}
		}
	}

	if b.Turns.RoundNumber < 1 {
		b.Turns.RoundNumber = 1
	}
	if b.Turns.PlayedThisRound == nil {
		b.Turns.PlayedThisRound = []int{}
	}
	if b.Clock.Date.IsZero() {
		b.Clock.Date = Epoch
	}
	if b.Clock.Round < 1 {
		b.Clock.Round = b.Turns.RoundNumber
	}
}

func (s *Store) normalizeSession(sess *Session) {
	if sess.Players == nil {
		sess.Players = []Character{}
	}
	if sess.NPCs == nil {
		sess.NPCs = []NPC{}
	}
	if sess.Bestiary == nil {
		sess.Bestiary = NewSession("").Bestiary
	}
	seen := make(map[string]bool, len(sess.Players))
	for i := range sess.Players {
		if id := sess.Players[i].ID; id == "" || seen[id] {
			sess.Players[i].ID = uuid.NewString()
		}
		seen[sess.Players[i].ID] = true
	}
}

// clampTurns keeps the turn state inside the current roster.
func (s *Store) clampTurns() {
	t := &s.bundle.Turns
	size := s.RosterSize()
	if t.CurrentTurn < 0 || t.CurrentTurn >= size {
		t.CurrentTurn = 0
	}
	valid := make([]int, 0, len(t.PlayedThisRound))
	for _, p := range t.PlayedThisRound {
		if p >= 0 && p < size && !slices.Contains(valid, p) {
			valid = append(valid, p)
		}
	}
	slices.Sort(valid)
	t.PlayedThisRound = valid
}

func appendBounded(log []Message, msg Message, max int) []Message {
	log = append(log, msg)
	if max > 0 && len(log) > max {
		n := copy(log, log[len(log)-max:])
		log = log[:n]
	}
	return log
}

func trimLog(log []Message, max int) []Message {
	if log == nil {
		return []Message{}
	}
	if max > 0 && len(log) > max {
		return append([]Message{}, log[len(log)-max:]...)
	}
	return log
}
