package handler

import (
	"strconv"
	"strings"

	"github.com/Yukky887/ReminderBot/internal/util"
)

const (
	CmdStart         = "start"
	CmdStatus        = "status"
	CmdPay           = "pay"
	CmdHelp          = "help"
	CmdActivate      = "activate"
	CmdUsers         = "users"
	CmdPayments      = "payments"
	CmdFind          = "find"
	CmdSetWaiting    = "set_waiting"
	CmdSuspend       = "suspend"
	CmdSetDate       = "set_date"
	CmdSendPayButton = "send_pay_button"
)

var adminCommands = map[string]bool{
	CmdActivate:      true,
	CmdUsers:         true,
	CmdPayments:      true,
	CmdFind:          true,
	CmdSetWaiting:    true,
	CmdSuspend:       true,
	CmdSetDate:       true,
	CmdSendPayButton: true,
}

// Command is a parsed "/name arg arg" message. Name is empty for text that
// is not a command.
type Command struct {
	Name string
	Args []string
}

// parseCommand lowercases the name and drops a "@botname" suffix, which
// Telegram appends in group chats.
func parseCommand(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}
}

func (c Command) AdminOnly() bool {
	return adminCommands[c.Name]
}

// TargetID parses the first argument as a chat user id.
func (c Command) TargetID() (int64, bool) {
	if len(c.Args) == 0 {
		return 0, false
	}
	return util.ParseTelegramID(c.Args[0])
}

func (c Command) IntArg(i int) (int, bool) {
	if i >= len(c.Args) {
		return 0, false
	}
	n, err := strconv.Atoi(c.Args[i])
	if err != nil {
		return 0, false
	}
	return n, true
}
