package main

import (
	"bufio"
	"chat-gen/client"
	"chat-gen/projection"
	"chat-gen/sink"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the tester application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the tester-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=http://localhost:8080"`
	Email         string `env:"CHAT_EMAIL,required=true"`
	Password      string `env:"CHAT_PASSWORD,required=true"`
	ChatID        string `env:"CHAT_ID"`
	CharacterID   string `env:"CHAT_CHARACTER_ID,default=assistant"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tester error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Authenticate, creating the account on first use.
	c := client.New(config.ServerAddress)
	if err := c.Login(config.Email, config.Password); err != nil {
		if err := c.Register(config.Email, config.Password); err != nil {
			return exitRuntime, fmt.Errorf("could not authenticate: %w", err)
		}
	}

	// 4. Join an existing chat or create a fresh one.
	chatID := config.ChatID
	if chatID == "" {
		created, err := c.CreateChat(nil, config.CharacterID)
		if err != nil {
			return exitRuntime, fmt.Errorf("could not create chat: %w", err)
		}
		chatID = created.ID
		color.Cyan.Printf("Created chat %s\n", chatID)
	}

	// 5. Open the event stream.
	events, err := c.Subscribe(ctx, chatID)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open stream: %w", err)
	}
	color.Green.Printf(">>> Connected to %s, chat %s (Ctrl+C to quit)\n", config.ServerAddress, chatID)

	view := newLocalView()
	go printEvents(events, view)

	// 6. Input loop: plain lines become messages, slash commands do the rest.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return exitOK, nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return exitOK, nil
		case line == "/history":
			if err := printHistory(c, chatID); err != nil {
				color.Red.Printf("history failed: %v\n", err)
			}
		case line == "/timeline":
			view.print()
		case strings.HasPrefix(line, "/retry "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/retry "), " ", 2)
			if len(parts) != 2 {
				color.Red.Println("usage: /retry <message-id> <text>")
				continue
			}
			if err := c.Retry(chatID, parts[0], parts[1], false); err != nil {
				color.Red.Printf("retry failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/ephemeral "):
			if err := c.PostMessage(chatID, strings.TrimPrefix(line, "/ephemeral "), true); err != nil {
				color.Red.Printf("post failed: %v\n", err)
			}
		default:
			if err := c.PostMessage(chatID, line, false); err != nil {
				color.Red.Printf("post failed: %v\n", err)
			}
		}
	}
	return exitOK, nil
}

// localView is the timeline projected from events seen since connecting,
// as opposed to /history which asks the server. Useful to eyeball that
// retries edit in place and ephemeral replies stay out of /history.
type localView struct {
	mu       sync.Mutex
	timeline *projection.Timeline
}

func newLocalView() *localView {
	return &localView{timeline: projection.NewTimeline()}
}

func (v *localView) consume(evt sink.WireEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.timeline.Consume(evt)
}

func (v *localView) print() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, entry := range v.timeline.Entries {
		marker := ""
		if entry.Ephemeral {
			marker = color.Yellow.Render(" (ephemeral)")
		}
		fmt.Printf("%s %s: %s%s\n",
			entry.SentAt.Format(time.TimeOnly), entry.SenderID, entry.Content, marker)
	}
	if v.timeline.Draft != "" {
		fmt.Printf("%s %s\n", color.Yellow.Render("(generating)"), v.timeline.Draft)
	}
}

// printEvents renders the live stream. Partials overwrite the current
// line so a streaming reply looks like it is being typed.
func printEvents(events <-chan sink.WireEvent, view *localView) {
	for evt := range events {
		view.consume(evt)
		switch evt.Type {
		case sink.TypeMessagePartial:
			fmt.Printf("\r\033[K%s %s", color.Yellow.Render("..."), evt.Partial)
		case sink.TypeMessageCreated:
			fmt.Printf("\r\033[K")
			header := color.New(color.BgBlack, color.FgGreen).Render(
				fmt.Sprintf("[%s] %s:", time.UnixMilli(evt.SentAt).Format(time.TimeOnly), evt.SenderID))
			fmt.Printf("%s %s\n", header, evt.Content)
		case sink.TypeMessageRetry:
			fmt.Printf("\r\033[K%s %s\n", color.Cyan.Render("[retry]"), evt.Content)
		case sink.TypeMessageError:
			fmt.Printf("\r\033[K%s %s\n", color.Red.Render("[error]"), evt.Error)
		}
	}
}

// printHistory renders the latest message page as a table.
func printHistory(c *client.Client, chatID string) error {
	messages, _, err := c.GetMessages(chatID, nil)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Time", "Sender", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		displayID := m.ID
		if len(displayID) > 8 {
			displayID = displayID[:8]
		}
		table.Append([]string{
			displayID,
			time.UnixMilli(m.SentAt).Format("15:04:05"),
			m.SenderID,
			m.Content,
		})
	}
	table.Render()
	return nil
}
