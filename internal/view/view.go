// Package view projects room state into renderable structures. Projection is
// pure: it never mutates the snapshot and calling it twice on the same input
// yields the same output.
package view

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"roomchat/internal/room"
	"roomchat/pkg/protocol"
)

// Line is one rendered transcript line. Self marks lines authored by the
// local user so the surface can style them apart.
type Line struct {
	Text string
	Self bool
}

// View is everything a chat surface needs to draw one frame.
type View struct {
	Me           string
	Roster       []string
	Transcript   []Line
	TypingLine   string
	Disconnected bool
}

// Project derives the renderable view from a room snapshot.
func Project(snap room.Snapshot) View {
	remote := lo.Filter(snap.Typing, func(user string, _ int) bool {
		return user != snap.Self
	})

	return View{
		Me:           snap.Self,
		Roster:       append([]string(nil), snap.Roster...),
		Transcript:   lo.Map(snap.Transcript, formatEntry),
		TypingLine:   typingLine(remote),
		Disconnected: snap.Phase == room.PhaseDisconnected,
	}
}

func formatEntry(entry room.Entry, _ int) Line {
	switch entry.Kind {
	case protocol.EntryJoined:
		return Line{Text: fmt.Sprintf("*** %s joined the chat ***", entry.Username)}
	case protocol.EntryLeft:
		return Line{Text: fmt.Sprintf("*** %s left the chat ***", entry.Username)}
	default:
		return Line{
			Text: fmt.Sprintf("[%s]: %s", entry.Username, entry.Text),
			Self: entry.Self,
		}
	}
}

func typingLine(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing...", users[0])
	default:
		return fmt.Sprintf("%s are typing...", strings.Join(users, ", "))
	}
}
