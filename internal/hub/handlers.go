package hub

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/narrative"
)

// Text limits, in characters.
const (
	MaxMessageLength = 2000
	MaxOOCLength     = 1000
)

const (
	unknownCharacter = "unknown character"
	defaultGMName    = "GM"
	anonymous        = "Anonymous"
)

// caller is whoever issued the command being applied.
type caller struct {
	connID string
	name   string
}

func (h *Hub) callerOf(env envelope) caller {
	c := caller{connID: env.connID, name: env.actor}
	if c.name == "" && env.connID != "" {
		if e, ok := h.presence.Lookup(env.connID); ok {
			c.name = e.DisplayName
		}
	}
	return c
}

func (h *Hub) apply(env envelope) {
	c := h.callerOf(env)
	log := h.logger.With("command", env.cmd.Name())
	if c.connID != "" {
		log = log.With("conn_id", c.connID)
	}

	switch cmd := env.cmd.(type) {
	case Join:
		h.join(c, cmd)
	case SelectCharacter:
		h.selectCharacter(c, cmd)
	case SendMessage:
		h.sendMessage(c, cmd)
	case SendOOC:
		h.sendOOC(c, cmd)
	case NextTurn:
		if !h.engine.Enabled() {
			log.Debug("turn system disabled")
			return
		}
		h.advance()
	case SkipTurn:
		if !h.engine.Enabled() {
			log.Debug("turn system disabled")
			return
		}
		h.skipTurn(c)
	case SetTurn:
		if !h.engine.SetTurn(cmd.Index) {
			log.Debug("turn index out of range", "index", cmd.Index)
			return
		}
		h.broadcastTurn()
		h.persist()
	case ResetTurns:
		h.resetTurns()
	case ToggleTurnSystem:
		h.toggleTurns()
	case UpdatePlayer:
		h.updatePlayer(cmd)
	case AddPlayer:
		h.addPlayer(cmd)
	case DeletePlayer:
		h.deletePlayer(cmd)
	case UpdateNPC:
		if err := h.store.UpdateNPC(cmd.Faction, cmd.Index, cmd.NPC); err != nil {
			log.Debug("npc update ignored", "faction", cmd.Faction, "index", cmd.Index, "error", err)
			return
		}
		h.broadcast(EventNPCUpdated, NPCView{Faction: cmd.Faction, Index: cmd.Index, NPC: cmd.NPC})
		h.persist()
	case AddNPC:
		if _, err := h.store.AddNPC(strings.TrimSpace(cmd.Faction), cmd.NPC); err != nil {
			log.Debug("npc add ignored", "faction", cmd.Faction, "error", err)
			return
		}
		h.broadcast(EventBestiaryUpdated, h.store.Current().Bestiary)
		h.persist()
	case DeleteNPC:
		if _, err := h.store.RemoveNPC(cmd.Faction, cmd.Index); err != nil {
			log.Debug("npc delete ignored", "faction", cmd.Faction, "index", cmd.Index, "error", err)
			return
		}
		h.broadcast(EventBestiaryUpdated, h.store.Current().Bestiary)
		h.persist()
	case UpdateSession:
		if err := h.store.MergeSessionFields(cmd.Fields); err != nil {
			log.Debug("session update ignored", "error", err)
			return
		}
		h.broadcastData()
		h.persist()
	case UpdateRPTime:
		if err := h.store.SetClock(cmd.Clock); err != nil {
			log.Debug("clock update ignored", "error", err)
			return
		}
		h.broadcast(EventRPTimeUpdated, *h.store.Clock())
		h.persist()
	case ClearChat:
		h.store.ClearLog(session.ChatLog)
		h.broadcast(EventChatCleared, nil)
		h.persist()
	case ClearOOC:
		h.store.ClearLog(session.OOCLog)
		h.broadcast(EventOOCCleared, nil)
		h.persist()
	case Disconnect:
		h.disconnect(c)
	case narrationDone:
		h.finishNarration(cmd)
	default:
		log.Warn("unhandled command")
	}
}

func (h *Hub) join(c caller, cmd Join) {
	if c.connID == "" {
		return
	}
	idx := h.resolve(cmd.CharacterRef)
	charID := ""
	if ch, ok := h.store.CharacterAt(idx); ok {
		charID = ch.ID
	}
	entry := h.presence.Join(c.connID, cmd.DisplayName, charID)
	h.logger.Info("participant joined", "conn_id", c.connID, "name", entry.DisplayName)

	b := h.store.Bundle()
	h.reply(c.connID, EventGameState, GameState{
		ConnectionID: c.connID,
		Sessions:     b.Sessions,
		Current:      b.Current,
		Chat:         h.store.Recent(session.ChatLog, h.snapshotChat),
		OOC:          h.store.Recent(session.OOCLog, h.snapshotOOC),
		Turns:        b.Turns,
		Clock:        b.Clock,
		Players:      h.presenceViews(),
	})
	h.broadcast(EventPlayersUpdated, h.presenceViews())
}

func (h *Hub) selectCharacter(c caller, cmd SelectCharacter) {
	charID := ""
	if !cmd.empty() && (cmd.Index == nil || *cmd.Index >= 0) {
		ch, ok := h.store.CharacterAt(h.resolve(cmd.CharacterRef))
		if !ok {
			h.logger.Debug("select ignored, unknown character", "conn_id", c.connID)
			return
		}
		charID = ch.ID
	}
	if !h.presence.Select(c.connID, charID) {
		return
	}
	h.broadcast(EventPlayersUpdated, h.presenceViews())
}

func (h *Hub) sendMessage(c caller, cmd SendMessage) {
	text := truncate(strings.TrimSpace(cmd.Text), MaxMessageLength)
	if text == "" {
		return
	}
	kind := cmd.Kind
	if kind == "" {
		kind = session.KindPlayer
	}
	if kind == session.KindOOC || !kind.Valid() {
		h.logger.Debug("message dropped, bad kind", "kind", kind)
		return
	}

	var character *session.Character
	if !cmd.empty() {
		if ch, ok := h.store.CharacterAt(h.resolve(cmd.CharacterRef)); ok {
			character = &ch
		}
	}

	author := c.name
	if kind == session.KindPlayer {
		author = firstNonEmpty(strings.TrimSpace(cmd.CharacterName), nameOf(character), c.name, unknownCharacter)
	} else if author == "" {
		author = defaultGMName
	}

	msg := session.Message{
		Kind:        kind,
		Text:        text,
		Author:      author,
		DisplayName: c.name,
		Round:       h.store.Turns().RoundNumber,
	}
	if character != nil {
		msg.CharacterID = character.ID
	}
	msg = h.store.AppendMessage(session.ChatLog, msg)
	h.broadcast(EventChatMessage, msg)
	h.persist()

	// A message that names a character is narrated even when the reference
	// no longer resolves; the scene then has no location or vitals.
	if kind == session.KindPlayer && h.narrator != nil && cmd.names() {
		scene := narrative.Scene{
			Actor:  author,
			Action: text,
			Round:  h.store.Turns().RoundNumber,
		}
		if character != nil {
			scene.Location = character.Location
			scene.Species = character.Species
			scene.HP = character.HP
			scene.MaxHP = character.MaxHP
		}
		h.startNarration(scene)
	}
}

func (h *Hub) sendOOC(c caller, cmd SendOOC) {
	text := truncate(strings.TrimSpace(cmd.Text), MaxOOCLength)
	if text == "" {
		return
	}
	msg := h.store.AppendMessage(session.OOCLog, session.Message{
		Kind:        session.KindOOC,
		Text:        text,
		Author:      firstNonEmpty(c.name, anonymous),
		DisplayName: c.name,
	})
	h.broadcast(EventOOCMessage, msg)
	h.persist()
}

func (h *Hub) skipTurn(c caller) {
	name := c.name
	if idx, ok := h.engine.Current(); ok {
		if ch, ok := h.store.CharacterAt(idx); ok {
			name = ch.Name
		}
	}
	h.system(fmt.Sprintf("%s skips their turn.", firstNonEmpty(name, "A player")))
	h.advance()
}

// advance moves the turn and emits the rollover and turn events.
func (h *Hub) advance() {
	res, ok := h.engine.Advance()
	if !ok {
		h.persist()
		return
	}
	if res.NewRound {
		h.system(fmt.Sprintf("═══ ROUND %d ═══", res.Round))
		h.broadcast(EventRPTimeUpdated, *h.store.Clock())
	}
	h.broadcastTurn()
	h.persist()
}

func (h *Hub) resetTurns() {
	h.engine.Reset()
	first := "Player 1"
	if ch, ok := h.store.CharacterAt(0); ok && ch.Name != "" {
		first = ch.Name
	}
	h.system(fmt.Sprintf("Turns reset. Round 1 begins with %s.", first))
	h.broadcastTurn()
	h.persist()
}

func (h *Hub) toggleTurns() {
	msg := "Turn order disabled. Everyone may act freely."
	if h.engine.Toggle() {
		msg = "Turn order enabled."
	}
	h.system(msg)
	h.broadcastTurn()
	h.persist()
}

func (h *Hub) updatePlayer(cmd UpdatePlayer) {
	idx := h.playerIndex(cmd.Index, cmd.ID)
	ch, err := h.store.UpdateCharacter(idx, cmd.Updates)
	if err != nil {
		h.logger.Debug("player update ignored", "index", idx, "error", err)
		return
	}
	h.broadcast(EventPlayerUpdated, PlayerView{Index: idx, Player: ch})
	h.persist()
}

func (h *Hub) addPlayer(cmd AddPlayer) {
	ch, idx, err := h.store.AddCharacter(cmd.Data)
	if err != nil {
		h.logger.Debug("player add ignored", "error", err)
		return
	}
	h.broadcast(EventPlayerAdded, PlayerView{Index: idx, Player: ch})
	h.persist()
}

func (h *Hub) deletePlayer(cmd DeletePlayer) {
	idx := h.playerIndex(cmd.Index, cmd.ID)
	removed, err := h.store.RemoveCharacter(idx)
	if err != nil {
		h.logger.Debug("player delete ignored", "index", idx, "error", err)
		return
	}
	h.broadcast(EventPlayerDeleted, PlayerDeletedView{Index: idx, ID: removed.ID})
	h.presence.ForgetCharacter(removed.ID)
	h.broadcast(EventPlayersUpdated, h.presenceViews())
	h.broadcastTurn()
	h.persist()
}

func (h *Hub) disconnect(c caller) {
	delete(h.peers, c.connID)
	if e, ok := h.presence.Leave(c.connID); ok {
		h.logger.Info("participant left", "conn_id", c.connID, "name", e.DisplayName)
		h.broadcast(EventPlayersUpdated, h.presenceViews())
	}
}

func (h *Hub) startNarration(scene narrative.Scene) {
	h.narrating++
	if h.narrating == 1 {
		h.broadcast(EventAITyping, true)
	}
	ctx := h.runCtx
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		text, ok := h.narrator.Narrate(ctx, scene)
		if err := h.enqueue(envelope{cmd: narrationDone{text: text, ok: ok}}); err != nil && !errors.Is(err, ErrStopped) {
			h.logger.Warn("narration result lost", "error", err)
		}
	}()
}

func (h *Hub) finishNarration(done narrationDone) {
	h.narrating--
	if done.ok {
		msg := h.store.AppendMessage(session.ChatLog, session.Message{
			Kind:   session.KindNarrator,
			Text:   truncate(done.text, MaxMessageLength),
			Author: h.narratorName,
			Round:  h.store.Turns().RoundNumber,
		})
		h.broadcast(EventChatMessage, msg)
		h.persist()
	}
	if h.narrating <= 0 {
		h.narrating = 0
		h.broadcast(EventAITyping, false)
	}
}

// system appends and broadcasts a system message.
func (h *Hub) system(text string) {
	msg := h.store.AppendMessage(session.ChatLog, session.Message{
		Kind:   session.KindSystem,
		Text:   text,
		Author: "System",
		Round:  h.store.Turns().RoundNumber,
	})
	h.broadcast(EventChatMessage, msg)
}

func (h *Hub) broadcastTurn() {
	view := TurnView{TurnSystem: *h.store.Turns()}
	view.TurnSystem.PlayedThisRound = append([]int{}, view.TurnSystem.PlayedThisRound...)
	if idx, ok := h.engine.Current(); ok {
		if ch, ok := h.store.CharacterAt(idx); ok {
			view.CurrentPlayer = ch.Name
			view.CurrentID = ch.ID
		}
	}
	h.broadcast(EventTurnChanged, view)
}

func (h *Hub) broadcastData() {
	b := h.store.Bundle()
	h.broadcast(EventDataUpdated, DataView{Sessions: b.Sessions, Current: b.Current})
}

func (h *Hub) presenceViews() []PresenceView {
	entries := h.presence.List()
	views := make([]PresenceView, len(entries))
	for i, e := range entries {
		views[i] = PresenceView{Entry: e, CharacterIndex: h.store.IndexOf(e.CharacterID)}
	}
	return views
}

// resolve maps a reference to a current roster position, or -1.
func (h *Hub) resolve(ref CharacterRef) int {
	if ref.ID != "" {
		return h.store.IndexOf(ref.ID)
	}
	if ref.Index != nil {
		return *ref.Index
	}
	return -1
}

func (h *Hub) playerIndex(index *int, id string) int {
	return h.resolve(CharacterRef{ID: id, Index: index})
}

func nameOf(c *session.Character) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
