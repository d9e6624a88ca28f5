/*
Package ui renders the collaborative chat in a terminal.

It implements the session.Presenter interface: room list, transcript,
presence count, connection status, and transient notifications, styled with
lipgloss. The presenter is write-only; it never calls back into the session
manager.
*/
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"collabchat/internal/protocol"
	"collabchat/internal/session"
)

var (
	statusConnectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#51cf66")).Bold(true)
	statusConnectingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd43b")).Bold(true)
	statusDisconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6b6b")).Bold(true)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#c5aeff"))
	usernameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8a63d2"))
	systemStyle   = lipgloss.NewStyle().Italic(true).Faint(true)
	timeStyle     = lipgloss.NewStyle().Faint(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true).Italic(true)

	notifySuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#51cf66"))
	notifyErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6b6b"))
	notifyInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#c5aeff"))
)

// TerminalPresenter renders session state as styled lines on a terminal.
type TerminalPresenter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalPresenter returns a presenter writing to out.
func NewTerminalPresenter(out io.Writer) *TerminalPresenter {
	return &TerminalPresenter{out: out}
}

// RenderRoomList prints the room list snapshot with user counts.
func (p *TerminalPresenter) RenderRoomList(rooms []protocol.Room) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, titleStyle.Render("Rooms"))

	if len(rooms) == 0 {
		fmt.Fprintln(p.out, mutedStyle.Render("  No rooms available. Create the first one!"))
		return
	}

	for i, room := range rooms {
		visibility := "public"
		if room.Private {
			visibility = "private"
		}

		line := fmt.Sprintf("  %d. %s (%s, %d users)", i+1, room.Name, visibility, room.UserCount)
		fmt.Fprintln(p.out, line)

		if room.Description != "" {
			fmt.Fprintln(p.out, mutedStyle.Render("     "+room.Description))
		}
	}
}

// RenderRoom prints the joined room's header followed by its backlog.
func (p *TerminalPresenter) RenderRoom(room protocol.Room, backlog []protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, titleStyle.Render("== "+room.Name+" =="))

	if len(backlog) == 0 {
		fmt.Fprintln(p.out, mutedStyle.Render(fmt.Sprintf("Welcome to %s! Start chatting with other users.", room.Name)))
		return
	}

	for _, msg := range backlog {
		p.writeMessageLocked(msg)
	}
}

// ResetRoom returns the view to the no-membership state.
func (p *TerminalPresenter) ResetRoom() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, mutedStyle.Render("Join or create a room to start chatting with other users."))
}

// AppendMessage prints one transcript entry.
func (p *TerminalPresenter) AppendMessage(msg protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeMessageLocked(msg)
}

func (p *TerminalPresenter) writeMessageLocked(msg protocol.Message) {
	timestamp := timeStyle.Render(msg.Timestamp.Local().Format("15:04:05"))

	if msg.UserID == protocol.SystemUserID {
		fmt.Fprintf(p.out, "%s %s\n", timestamp, systemStyle.Render(msg.Content))
		return
	}

	fmt.Fprintf(p.out, "%s %s: %s\n", timestamp, usernameStyle.Render(msg.Username), msg.Content)
}

// SetPresence prints the presence count for the current room.
func (p *TerminalPresenter) SetPresence(users []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	plural := "s"
	if len(users) == 1 {
		plural = ""
	}

	line := fmt.Sprintf("%d user%s", len(users), plural)
	if len(users) > 0 {
		line += ": " + strings.Join(users, ", ")
	}

	fmt.Fprintln(p.out, mutedStyle.Render(line))
}

// SetConnectionStatus prints the connection status with its state color.
func (p *TerminalPresenter) SetConnectionStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style := statusDisconnectedStyle
	switch {
	case status == "Connected":
		style = statusConnectedStyle
	case strings.HasPrefix(status, "Connecting"), strings.HasPrefix(status, "Reconnecting"):
		style = statusConnectingStyle
	}

	fmt.Fprintln(p.out, style.Render("["+status+"]"))
}

// SetControlsEnabled reflects whether messages can currently be sent.
func (p *TerminalPresenter) SetControlsEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !enabled {
		fmt.Fprintln(p.out, mutedStyle.Render("(sending disabled while not connected)"))
	}
}

// Notify prints a transient toast-style notification.
func (p *TerminalPresenter) Notify(level session.NotifyLevel, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style := notifyInfoStyle
	switch level {
	case session.NotifySuccess:
		style = notifySuccessStyle
	case session.NotifyError:
		style = notifyErrorStyle
	}

	fmt.Fprintln(p.out, style.Render("* "+message))
}
