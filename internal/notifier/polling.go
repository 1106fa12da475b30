package notifier

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Command is a parsed bot command such as "/buy BTCUSDT crypto 100 2".
type Command struct {
	// Name is lower-case, without the slash or an @bot suffix.
	Name   string
	Args   []string
	ChatID string
	From   string
}

// Arg returns the i-th argument, or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins the arguments from i on, for free-text values like notes.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// ParseCommand parses message text. ok is false for anything that is not a command.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

// CommandHandler answers a command; an empty reply sends nothing.
type CommandHandler func(ctx context.Context, cmd Command) string

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

// StartPolling long-polls for commands from the configured chat and replies
// to each one. Messages from other chats are dropped. Blocks until ctx ends.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: t.PollTimeout + 5*time.Second}
	if t.Client != nil {
		client.Transport = t.Client.Transport
	}

	offset := 0
	for ctx.Err() == nil {
		var updates []telegramUpdate
		err := t.call(ctx, client, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         int(t.PollTimeout / time.Second),
			"allowed_updates": []string{"message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[WARN] polling request failed: %v, retrying in %v", err, t.PollBackoff)
			if !sleepCtx(ctx, t.PollBackoff) {
				break
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			t.dispatch(ctx, u, handler)
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(ctx context.Context, u telegramUpdate, handler CommandHandler) {
	m := u.Message
	if m == nil {
		return
	}
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	if chatID != t.ChatID {
		log.Printf("[WARN] ignoring message from unauthorized chat %s", chatID)
		return
	}
	cmd, ok := ParseCommand(m.Text)
	if !ok {
		return
	}
	cmd.ChatID = chatID
	if m.From != nil {
		cmd.From = m.From.Username
	}

	log.Printf("[INFO] received command /%s from %q", cmd.Name, cmd.From)
	reply := handler(ctx, cmd)
	if reply == "" {
		return
	}
	if err := t.sendTo(ctx, chatID, reply); err != nil {
		log.Printf("[ERROR] send reply to /%s: %v", cmd.Name, err)
	}
}
