package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// characterFields and npcFields drop the custom marshalers so the known
// fields can be encoded with the standard rules.
type (
	characterFields Character
	npcFields       NPC
	sessionFields   Session
)

var (
	characterKeys = jsonKeys(reflect.TypeOf(characterFields{}))
	npcKeys       = jsonKeys(reflect.TypeOf(npcFields{}))
	sessionKeys   = jsonKeys(reflect.TypeOf(sessionFields{}))
)

func (c Character) MarshalJSON() ([]byte, error) {
	return marshalFlat(characterFields(c), c.Extra)
}

func (c *Character) UnmarshalJSON(data []byte) error {
	var f characterFields
	extra, err := unmarshalLenient(data, &f, characterKeys)
	if err != nil {
		return err
	}
	f.Extra = extra
	*c = Character(f)
	return nil
}

func (n NPC) MarshalJSON() ([]byte, error) {
	return marshalFlat(npcFields(n), n.Extra)
}

func (n *NPC) UnmarshalJSON(data []byte) error {
	var f npcFields
	extra, err := unmarshalLenient(data, &f, npcKeys)
	if err != nil {
		return err
	}
	f.Extra = extra
	*n = NPC(f)
	return nil
}

func (s Session) MarshalJSON() ([]byte, error) {
	return marshalFlat(sessionFields(s), s.Extra)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var f sessionFields
	extra, err := unmarshalFlat(data, &f, sessionKeys)
	if err != nil {
		return err
	}
	if f.Bestiary == nil {
		takeAlias(extra, legacyBestiaryKey, &f.Bestiary)
	}
	if f.Clock == (Clock{}) {
		var rp legacyClock
		if takeAlias(extra, legacyClockKey, &rp) {
			f.Clock = Clock{Date: rp.Date, Round: rp.Round}
		}
	}
	if len(extra) == 0 {
		extra = nil
	}
	f.Extra = extra
	*s = Session(f)
	return nil
}

// Session keys written by the first generation of the tool.
const (
	legacyBestiaryKey = "bestiaire"
	legacyClockKey    = "rpTime"
)

type legacyClock struct {
	Date  time.Time `json:"date"`
	Round int       `json:"tour"`
}

// takeAlias decodes extra[key] into dst and removes it from extra. A value
// that does not decode stays in extra.
func takeAlias(extra map[string]any, key string, dst any) bool {
	value, ok := extra[key]
	if !ok {
		return false
	}
	data, err := json.Marshal(value)
	if err != nil || json.Unmarshal(data, dst) != nil {
		return false
	}
	delete(extra, key)
	return true
}

func jsonKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	return keys
}

func marshalFlat(known any, extra map[string]any) ([]byte, error) {
	base, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return base, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, taken := fields[key]; taken {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", key, err)
		}
		fields[key] = raw
	}
	return json.Marshal(fields)
}

func unmarshalFlat(data []byte, known any, keys map[string]struct{}) (map[string]any, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return rest(fields, keys)
}

// unmarshalLenient is unmarshalFlat for roster entries: a known field whose
// value has the wrong type is kept with the rest instead of failing the
// entry, and with it the whole snapshot.
func unmarshalLenient(data []byte, known any, keys map[string]struct{}) (map[string]any, error) {
	if err := json.Unmarshal(data, known); err == nil {
		return unmarshalFlat(data, known, keys)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	unknown := make(map[string]struct{}, len(keys))
	for key, raw := range fields {
		if _, ok := keys[key]; !ok {
			continue
		}
		single, err := json.Marshal(map[string]json.RawMessage{key: raw})
		if err != nil {
			return nil, err
		}
		if json.Unmarshal(single, known) != nil {
			unknown[key] = struct{}{}
		}
	}
	accepted := make(map[string]struct{}, len(keys))
	for key := range keys {
		if _, bad := unknown[key]; !bad {
			accepted[key] = struct{}{}
		}
	}
	return rest(fields, accepted)
}

// rest returns the decoded fields whose names are not in keys.
func rest(fields map[string]json.RawMessage, keys map[string]struct{}) (map[string]any, error) {
	var extra map[string]any
	for key, raw := range fields {
		if _, ok := keys[key]; ok {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}
	return extra, nil
}

// toMap converts v into its generic JSON object form.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromMap decodes a generic JSON object into v.
func fromMap(m map[string]any, v any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// DecodeBundle parses a stored snapshot. A record without a sessionsById
// key is read as a bare sessions map and reported as legacy; its logs are
// empty and its turn and clock state are the defaults.
func DecodeBundle(data []byte) (*Bundle, bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if len(probe) == 0 {
		return nil, false, fmt.Errorf("%w: empty record", ErrCorruptSnapshot)
	}

	rawSessions, wrapped := probe["sessionsById"]
	if !wrapped {
		rawSessions = data
	}
	var sessions map[string]*Session
	if err := json.Unmarshal(rawSessions, &sessions); err != nil {
		return nil, false, fmt.Errorf("%w: sessions: %v", ErrCorruptSnapshot, err)
	}
	if len(sessions) == 0 {
		return nil, false, fmt.Errorf("%w: no sessions", ErrCorruptSnapshot)
	}
	for key, s := range sessions {
		if s == nil {
			return nil, false, fmt.Errorf("%w: session %q is null", ErrCorruptSnapshot, key)
		}
	}

	b := &Bundle{
		Chat:  []Message{},
		OOC:   []Message{},
		Turns: DefaultTurnSystem(),
		Clock: DefaultClock(),
	}
	if wrapped {
		if err := json.Unmarshal(data, b); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
	}
	b.Sessions = sessions
	if _, ok := sessions[b.Current]; !ok {
		first, err := firstKey(rawSessions)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		b.Current = first
	}
	return b, !wrapped, nil
}

// firstKey returns the first key of a JSON object in document order.
func firstKey(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return "", err
	}
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}
