package session

import "errors"

var (
	// ErrCharacterNotFound indicates the roster has no character at the given position or id.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrFactionNotFound indicates the bestiary has no such faction.
	ErrFactionNotFound = errors.New("faction not found")
	// ErrNPCNotFound indicates the faction has no NPC at the given position.
	ErrNPCNotFound = errors.New("npc not found")
	// ErrInvalidInput indicates an update payload that cannot be applied.
	ErrInvalidInput = errors.New("invalid session input")
	// ErrCorruptSnapshot indicates a stored payload that fails structural validation.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
