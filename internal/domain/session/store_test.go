package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/filestore"
	"github.com/ganot/rpstage/internal/repository"
	"github.com/ganot/rpstage/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) (*session.Store, *filestore.Store) {
	t.Helper()
	files, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	return session.NewStore(files, "rp"), files
}

func TestStore_Load_MissingWritesDefaults(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SnapshotRepository{}
	repo.On("Load", ctx, "rp").Return(nil, repository.ErrNotFound)
	repo.On("Save", ctx, "rp", mock.Anything).Return(nil)

	store := session.NewStore(repo, "rp")
	b := store.Load(ctx)

	require.Equal(t, session.DefaultSessionKey, b.Current)
	require.Equal(t, "default", store.Current().Title)
	require.Empty(t, store.Current().Players)
	require.Len(t, store.Current().Bestiary, 3)
	require.Equal(t, session.Epoch, b.Clock.Date)
	require.Equal(t, 1, b.Turns.RoundNumber)
	require.True(t, b.Turns.Enabled)
	repo.AssertCalled(t, "Save", ctx, "rp", mock.Anything)
}

func TestStore_Load_CorruptFallsBackWithoutOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SnapshotRepository{}
	repo.On("Load", ctx, "rp").Return([]byte(`{"sessionsById": [1, 2]}`), nil)

	store := session.NewStore(repo, "rp")
	b := store.Load(ctx)

	require.Equal(t, "default", b.Sessions[b.Current].Title)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_Load_ReadErrorFallsBack(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SnapshotRepository{}
	repo.On("Load", ctx, "rp").Return(nil, errors.New("disk on fire"))

	store := session.NewStore(repo, "rp")
	b := store.Load(ctx)
	require.NotNil(t, b.Sessions[b.Current])
}

func TestStore_PersistLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, files := newFileStore(t)
	store.Load(ctx)

	c, idx, err := store.AddCharacter(map[string]any{"name": "Ichigo", "species": "Shinigami", "zanpakuto": "Zangetsu"})
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	store.AppendMessage(session.ChatLog, session.Message{Kind: session.KindPlayer, Text: "hello", Author: "Ichigo"})
	store.AppendMessage(session.OOCLog, session.Message{Kind: session.KindOOC, Text: "brb", Author: "Sam"})
	store.Turns().RoundNumber = 4
	store.Turns().PlayedThisRound = []int{0}
	require.NoError(t, store.SetClock(session.Clock{Date: session.Epoch.Add(time.Hour), Round: 4}))
	require.NoError(t, store.Persist(ctx))

	restarted := session.NewStore(files, "rp")
	b := restarted.Load(ctx)

	require.Len(t, b.Chat, 1)
	require.Equal(t, "hello", b.Chat[0].Text)
	require.Len(t, b.OOC, 1)
	require.Equal(t, 4, b.Turns.RoundNumber)
	require.Equal(t, []int{0}, b.Turns.PlayedThisRound)
	require.True(t, b.Clock.Date.Equal(session.Epoch.Add(time.Hour)))

	got, ok := restarted.CharacterAt(0)
	require.True(t, ok)
	require.Equal(t, c.ID, got.ID)
	require.Equal(t, "Zangetsu", got.Extra["zanpakuto"])
}

func TestStore_LegacyLoadMatchesWrapped(t *testing.T) {
	ctx := context.Background()
	sessions := `{"arc1": {"title": "Soul Society", "players": [{"id": "c1", "name": "Rukia", "hp": 80, "maxHp": 100}], "npcs": [], "bestiary": {"Hollow": []}}}`
	wrapped := `{"sessionsById": ` + sessions + `, "currentSession": "arc1", "chatLog": [], "oocLog": []}`

	legacyRepo := &mocks.SnapshotRepository{}
	legacyRepo.On("Load", ctx, "rp").Return([]byte(sessions), nil)
	wrappedRepo := &mocks.SnapshotRepository{}
	wrappedRepo.On("Load", ctx, "rp").Return([]byte(wrapped), nil)

	legacy := session.NewStore(legacyRepo, "rp").Load(ctx)
	modern := session.NewStore(wrappedRepo, "rp").Load(ctx)

	require.Equal(t, modern, legacy)
	require.Equal(t, "arc1", legacy.Current)
	require.Equal(t, session.DefaultTurnSystem(), legacy.Turns)
	require.Equal(t, session.DefaultClock(), legacy.Clock)
}

func TestStore_FractionalVitalsSurviveReload(t *testing.T) {
	ctx := context.Background()
	store, files := newFileStore(t)
	stored := `{"sessionsById": {"arc": {"title": "Big campaign",
		"players": [{"id": "c1", "name": "Kenpachi", "hp": 62.5, "maxHp": 100, "rank": "captain"},
		            {"id": "c2", "name": "Yachiru", "hp": "plenty"}],
		"bestiary": {"Hollow": [{"name": "Menos", "hp": 480.25}]}}},
		"currentSession": "arc", "turnSystem": {"enabled": true, "roundNumber": 7}}`
	require.NoError(t, files.Save(ctx, "rp", []byte(stored)))

	b := store.Load(ctx)
	require.Equal(t, "arc", b.Current)
	require.Equal(t, "Big campaign", store.Current().Title)
	require.Equal(t, 7, b.Turns.RoundNumber)

	roster := store.Roster()
	require.Len(t, roster, 2)
	require.Equal(t, 62.5, roster[0].HP)
	require.Equal(t, "captain", roster[0].Extra["rank"])
	require.Zero(t, roster[1].HP)
	require.Equal(t, "plenty", roster[1].Extra["hp"])
	require.Equal(t, 480.25, store.Current().Bestiary["Hollow"][0].HP)

	updated, err := store.UpdateCharacter(0, map[string]any{"hp": 42.5})
	require.NoError(t, err)
	require.Equal(t, 42.5, updated.HP)
	require.NoError(t, store.Persist(ctx))

	reloaded := session.NewStore(files, "rp")
	reloaded.Load(ctx)
	require.Equal(t, "Big campaign", reloaded.Current().Title)
	got, ok := reloaded.CharacterAt(0)
	require.True(t, ok)
	require.Equal(t, 42.5, got.HP)
}

func TestStore_LoadFirstGenerationSession(t *testing.T) {
	ctx := context.Background()
	stored := `{"main": {"title": "Arrancar arc",
		"players": [{"name": "Grimmjow", "hp": 90}],
		"npcs": [],
		"bestiaire": {"Shinigami": [{"name": "Byakuya"}], "Hollow": []},
		"rpTime": {"date": "2024-03-01T18:00:00Z", "tour": 3}}}`
	repo := &mocks.SnapshotRepository{}
	repo.On("Load", ctx, "rp").Return([]byte(stored), nil)

	store := session.NewStore(repo, "rp")
	store.Load(ctx)
	current := store.Current()
	require.Equal(t, "Arrancar arc", current.Title)
	require.NotContains(t, current.Extra, "bestiaire")
	require.NotContains(t, current.Extra, "rpTime")
	require.Equal(t, "Byakuya", current.Bestiary["Shinigami"][0].Name)
	require.Equal(t, 3, current.Clock.Round)
	require.Equal(t, time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC), current.Clock.Date.UTC())
	require.Equal(t, session.DefaultClock(), store.Bundle().Clock)

	require.NoError(t, store.UpdateNPC("Shinigami", 0, session.NPC{Name: "Byakuya", HP: 150}))
	_, err := store.AddNPC("Hollow", session.NPC{Name: "Menos"})
	require.NoError(t, err)

	require.NoError(t, store.MergeSessionFields(map[string]any{
		"bestiaire": map[string]any{"Shinigami": []any{}},
		"bestiary":  map[string]any{},
	}))
	require.Equal(t, 150.0, store.Current().Bestiary["Shinigami"][0].HP)
	require.Len(t, store.Current().Bestiary["Hollow"], 1)
	require.NotContains(t, store.Current().Extra, "bestiaire")

	data, err := store.Encode()
	require.NoError(t, err)
	require.Contains(t, string(data), `"bestiary"`)
	require.NotContains(t, string(data), `"bestiaire"`)
}

func TestStore_LoadSeedsFactionsWhenBestiaryMissing(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SnapshotRepository{}
	repo.On("Load", ctx, "rp").Return([]byte(`{"main": {"title": "Bare", "players": []}}`), nil)

	store := session.NewStore(repo, "rp")
	store.Load(ctx)
	for _, faction := range session.DefaultFactions {
		require.Contains(t, store.Current().Bestiary, faction)
	}
	_, err := store.AddNPC("Shinigami", session.NPC{Name: "Ikkaku"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateNPC("Shinigami", 0, session.NPC{Name: "Ikkaku", HP: 80}))
}

func TestStore_AppendMessage_FIFOEviction(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp", session.WithLimits(session.Limits{MaxChat: 3, MaxOOC: 2}))

	var ids []int64
	for i := 0; i < 5; i++ {
		msg := store.AppendMessage(session.ChatLog, session.Message{Kind: session.KindSystem, Text: string(rune('a' + i))})
		ids = append(ids, msg.ID)
	}
	chat := store.Recent(session.ChatLog, 0)
	require.Len(t, chat, 3)
	require.Equal(t, []string{"c", "d", "e"}, []string{chat[0].Text, chat[1].Text, chat[2].Text})
	require.Equal(t, ids[2:], []int64{chat[0].ID, chat[1].ID, chat[2].ID})

	for i := 0; i < 4; i++ {
		store.AppendMessage(session.OOCLog, session.Message{Kind: session.KindOOC, Text: "x"})
	}
	require.Len(t, store.Recent(session.OOCLog, 0), 2)
	require.Len(t, store.Recent(session.ChatLog, 2), 2)
}

func TestStore_AppendMessage_IDsIncrease(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp", session.WithNow(func() time.Time { return fixed }))

	a := store.AppendMessage(session.ChatLog, session.Message{Text: "a"})
	b := store.AppendMessage(session.OOCLog, session.Message{Text: "b"})
	require.Equal(t, fixed.UnixMilli(), a.ID)
	require.Equal(t, a.ID+1, b.ID)
	require.True(t, a.Timestamp.Equal(fixed))
}

func TestStore_MergeSessionFields_ProtectsBestiary(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	before := store.Current().Bestiary

	err := store.MergeSessionFields(map[string]any{
		"title":    "Hueco Mundo",
		"bestiary": map[string]any{"Arrancar": []any{}},
		"weather":  map[string]any{"sky": "black", "moon": "crescent"},
	})
	require.NoError(t, err)
	require.Equal(t, "Hueco Mundo", store.Current().Title)
	require.Equal(t, before, store.Current().Bestiary)
	require.NotContains(t, store.Current().Bestiary, "Arrancar")

	require.NoError(t, store.MergeSessionFields(map[string]any{"weather": map[string]any{"sky": "grey"}}))
	require.Equal(t, map[string]any{"sky": "grey", "moon": "crescent"}, store.Current().Extra["weather"])
}

func TestStore_MergeSessionFields_ReplacesArrays(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	_, _, err := store.AddCharacter(map[string]any{"name": "Ichigo"})
	require.NoError(t, err)
	_, _, err = store.AddCharacter(map[string]any{"name": "Orihime"})
	require.NoError(t, err)
	store.Turns().CurrentTurn = 1

	require.NoError(t, store.MergeSessionFields(map[string]any{
		"players": []any{map[string]any{"name": "Chad", "hp": 120, "maxHp": 120}},
	}))
	roster := store.Roster()
	require.Len(t, roster, 1)
	require.Equal(t, "Chad", roster[0].Name)
	require.NotEmpty(t, roster[0].ID)
	require.Equal(t, 0, store.Turns().CurrentTurn)
}

func TestStore_MergeSessionFields_InvalidShape(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	err := store.MergeSessionFields(map[string]any{"players": "everyone"})
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestStore_AddCharacter_Backfill(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	c, _, err := store.AddCharacter(map[string]any{"id": "forged", "species": "Quincy"})
	require.NoError(t, err)
	require.NotEqual(t, "forged", c.ID)
	require.Equal(t, "New character", c.Name)
	require.Equal(t, 100.0, c.HP)
	require.Equal(t, 100.0, c.MaxHP)
	require.Equal(t, "Quincy", c.Species)
}

func TestStore_DeleteThenUpdateIsNoop(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	_, _, err := store.AddCharacter(map[string]any{"name": "Ichigo"})
	require.NoError(t, err)

	removed, err := store.RemoveCharacter(0)
	require.NoError(t, err)
	require.Equal(t, "Ichigo", removed.Name)

	_, err = store.UpdateCharacter(0, map[string]any{"hp": 1})
	require.ErrorIs(t, err, session.ErrCharacterNotFound)
	require.Zero(t, store.RosterSize())
}

func TestStore_RemoveCharacter_RenumbersTurns(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	for _, name := range []string{"A", "B", "C", "D"} {
		_, _, err := store.AddCharacter(map[string]any{"name": name})
		require.NoError(t, err)
	}
	store.Turns().CurrentTurn = 2
	store.Turns().PlayedThisRound = []int{0, 1}

	_, err := store.RemoveCharacter(1)
	require.NoError(t, err)
	require.Equal(t, 1, store.Turns().CurrentTurn)
	require.Equal(t, []int{0}, store.Turns().PlayedThisRound)
	cur, _ := store.CharacterAt(store.Turns().CurrentTurn)
	require.Equal(t, "C", cur.Name)

	_, err = store.RemoveCharacter(2)
	require.NoError(t, err)
	require.Equal(t, 1, store.Turns().CurrentTurn)

	_, err = store.RemoveCharacter(1)
	require.NoError(t, err)
	require.Equal(t, 0, store.Turns().CurrentTurn)
}

func TestStore_UpdateCharacter_KeepsID(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	c, _, err := store.AddCharacter(map[string]any{"name": "Uryu", "stats": map[string]any{"str": 3, "dex": 5}})
	require.NoError(t, err)

	updated, err := store.UpdateCharacter(0, map[string]any{"id": "other", "hp": 42, "stats": map[string]any{"dex": 6}})
	require.NoError(t, err)
	require.Equal(t, c.ID, updated.ID)
	require.Equal(t, 42.0, updated.HP)
	require.Equal(t, map[string]any{"str": float64(3), "dex": float64(6)}, updated.Extra["stats"])
	require.Equal(t, 0, store.IndexOf(c.ID))
	require.Equal(t, -1, store.IndexOf("other"))
}

func TestStore_NPCs(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")

	require.ErrorIs(t, store.UpdateNPC("Arrancar", 0, session.NPC{Name: "Grimmjow"}), session.ErrFactionNotFound)
	require.ErrorIs(t, store.UpdateNPC("Hollow", 0, session.NPC{Name: "Grand Fisher"}), session.ErrNPCNotFound)

	idx, err := store.AddNPC("Hollow", session.NPC{Name: "Grand Fisher", HP: 300})
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.NoError(t, store.UpdateNPC("Hollow", 0, session.NPC{Name: "Grand Fisher", HP: 120}))
	require.Equal(t, 120.0, store.Current().Bestiary["Hollow"][0].HP)

	removed, err := store.RemoveNPC("Hollow", 0)
	require.NoError(t, err)
	require.Equal(t, "Grand Fisher", removed.Name)
	require.Empty(t, store.Current().Bestiary["Hollow"])

	_, err = store.AddNPC("", session.NPC{Name: "nobody"})
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestStore_Replace(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	store.AppendMessage(session.ChatLog, session.Message{Text: "kept"})

	require.NoError(t, store.Replace([]byte(`{"arc2": {"title": "Karakura", "players": []}}`)))
	require.Equal(t, "Karakura", store.Current().Title)
	require.Len(t, store.Recent(session.ChatLog, 0), 1)

	require.NoError(t, store.Replace([]byte(`{"sessionsById": {"x": {"title": "X"}}, "chatLog": []}`)))
	require.Equal(t, "X", store.Current().Title)
	require.Empty(t, store.Recent(session.ChatLog, 0))

	require.ErrorIs(t, store.Replace([]byte(`not json`)), session.ErrInvalidInput)
	require.Equal(t, "X", store.Current().Title)
}

func TestStore_SetClock(t *testing.T) {
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	require.ErrorIs(t, store.SetClock(session.Clock{}), session.ErrInvalidInput)

	when := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetClock(session.Clock{Date: when}))
	require.Equal(t, when, store.Clock().Date)
	require.Equal(t, 1, store.Clock().Round)
}
