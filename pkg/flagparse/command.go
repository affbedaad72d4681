package flagparse

import (
	"fmt"

	"github.com/yutahayashi/cc-sync-session/pkg/util"
)

// Command defines the subcommand to execute.
type Command int

const (
	None Command = iota
	Sync
	Init
	Archive
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Sync:    "sync",
	Init:    "init",
	Archive: "archive",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", int(c))
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'sync', 'init', 'archive', or 'version'", s)
}
