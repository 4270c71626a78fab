package session

import (
	"errors"
	"strings"
)

// ErrNotHost is returned by host-only commands invoked by a non-host client.
var ErrNotHost = errors.New("session: command requires host role")

// ErrorClass is the outcome of classifying a server error message.
type ErrorClass int

const (
	// ErrorAlreadyUnlocked is a benign duplicate unlock; absorbed silently.
	ErrorAlreadyUnlocked ErrorClass = iota
	// ErrorSoldOut rejects an optimistic purchase; the client compensates
	// by refunding the points and removing the item.
	ErrorSoldOut
	// ErrorInformational is surfaced as a transient notification only.
	ErrorInformational
	// ErrorFatal triggers a full local reset and snapshot eviction.
	ErrorFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorAlreadyUnlocked:
		return "already_unlocked"
	case ErrorSoldOut:
		return "sold_out"
	case ErrorInformational:
		return "informational"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// fatalKeywords mark session-level failures that invalidate the client's
// view of the game entirely.
var fatalKeywords = []string{
	"rejoin",
	"session",
	"already connected",
}

// ClassifyError maps a server error message to a handling class. The server
// sends no error codes, so classification is by substring, and the check
// order matters: the benign duplicate-unlock case must win over everything,
// then the purchase rollback, then gameplay rejections, before falling
// through to the fatal/informational split.
func ClassifyError(message string) ErrorClass {
	m := strings.ToLower(message)

	switch {
	case strings.Contains(m, "already unlocked"):
		return ErrorAlreadyUnlocked
	case strings.Contains(m, "sold out"):
		return ErrorSoldOut
	case strings.Contains(m, "cleanse"):
		return ErrorInformational
	case strings.Contains(m, "immunity"), strings.Contains(m, "blocked"):
		return ErrorInformational
	}

	for _, kw := range fatalKeywords {
		if strings.Contains(m, kw) {
			return ErrorFatal
		}
	}
	return ErrorInformational
}

// Notifier receives user-visible notifications from the store. Every
// non-silent error path produces one; fatal errors additionally return the
// user to the entry flow.
type Notifier interface {
	// Notify surfaces a transient, dismissable message.
	Notify(message string)
	// SessionEnded signals that the session was reset and the user must be
	// returned to the entry flow.
	SessionEnded(reason string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string)       {}
func (NopNotifier) SessionEnded(string) {}
