/*
Package main is the entry point for the collabchat terminal client.

It wires the session manager to a lipgloss terminal presenter and the
SQLite-backed local settings store, then reads commands from stdin: plain
lines are sent as chat messages, slash commands drive room and session
operations.
*/
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"collabchat/internal/configs"
	"collabchat/internal/localstore"
	"collabchat/internal/pkg/logx"
	"collabchat/internal/session"
	"collabchat/internal/ui"
)

const usage = `Commands:
  /nick <name>                set your username
  /connect                    connect to the server
  /rooms                      refresh the room list
  /join <number|room-id>      join a room from the list
  /leave                      leave the current room
  /create <name> [desc...]    create a public room
  /createprivate <name>       create a private room
  /who                        show who is in the room
  /quit                       exit
Anything else is sent as a chat message.`

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.Environment == "development")

	store, err := localstore.Open(cfg.DataDir)
	if err != nil {
		logx.Fatal(err, "Failed to open local store")
	}
	defer store.Close()

	presenter := ui.NewTerminalPresenter(os.Stdout)

	manager, err := session.NewManager(cfg.ServerURL, store, presenter)
	if err != nil {
		logx.Fatal(err, "Failed to create session manager")
	}
	defer manager.Close()

	fmt.Println(usage)

	if manager.Username() != "" {
		fmt.Printf("Welcome back, %s.\n", manager.Username())
		manager.Connect()
	} else {
		fmt.Println("Set a username with /nick, then /connect.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			manager.SendMessage(line)
			continue
		}

		if !runCommand(manager, line) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logx.Error(err, "Failed reading stdin")
	}
}

// runCommand executes one slash command. It returns false when the client
// should exit.
func runCommand(manager *session.Manager, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/nick":
		if rest == "" {
			fmt.Println("Usage: /nick <name>")
			return true
		}
		manager.SetUsername(rest)
		fmt.Printf("Username set to %s.\n", rest)

	case "/connect":
		manager.Connect()

	case "/rooms":
		manager.RequestRoomList()

	case "/join":
		manager.JoinRoom(resolveRoomID(manager, rest))

	case "/leave":
		manager.LeaveRoom()

	case "/create":
		name, desc, _ := strings.Cut(rest, " ")
		manager.CreateRoom(name, strings.TrimSpace(desc), false)

	case "/createprivate":
		manager.CreateRoom(rest, "", true)

	case "/who":
		users := manager.Presence()
		if room := manager.CurrentRoom(); room != nil {
			fmt.Printf("%s: %s\n", room.Name, strings.Join(users, ", "))
		} else {
			fmt.Println("Not in a room.")
		}

	case "/quit":
		return false

	default:
		fmt.Println(usage)
	}

	return true
}

// resolveRoomID turns a 1-based room list index into a room ID; any other
// input is passed through as an ID.
func resolveRoomID(manager *session.Manager, arg string) string {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return arg
	}

	rooms := manager.Rooms()
	if index < 1 || index > len(rooms) {
		return arg
	}

	return rooms[index-1].ID
}
