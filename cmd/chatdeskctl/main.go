package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/matheus3301/chatdesk/internal/auth"
	"github.com/matheus3301/chatdesk/internal/client"
	"github.com/matheus3301/chatdesk/internal/config"
	"github.com/matheus3301/chatdesk/internal/profile"
)

// env is what every command runs with.
type env struct {
	ctx     context.Context
	c       *client.Client
	profile string
	json    bool
}

// out prints v as JSON when --json is set, else runs text.
func (e env) out(v any, text func()) {
	if e.json {
		outputJSON(v)
		return
	}
	text()
}

type command struct {
	usage string
	help  string
	run   func(e env, args []string) error
	// stream commands run without the request timeout.
	stream bool
}

var commands map[string]command

// init fills the table; the handlers refer back to it for usage text.
func init() {
	commands = map[string]command{
		"status":   {usage: "status", help: "Show daemon status", run: cmdStatus},
		"contacts": {usage: "contacts [query]", help: "List contacts", run: cmdContacts},
		"show":     {usage: "show <contact>", help: "Show a conversation", run: cmdShow},
		"open":     {usage: "open <contact>", help: "Make a conversation active", run: cmdOpen},
		"read":     {usage: "read <contact>", help: "Mark a conversation read", run: cmdRead},
		"visible":  {usage: "visible", help: "Report the window visible and read the active conversation", run: cmdVisible},
		"receive":  {usage: "receive <contact> <text>", help: "Inject a message from a contact", run: cmdReceive},
		"create":   {usage: "create [--id id] [--title t] [--first text] <name>", help: "Create a contact", run: cmdCreate},
		"send":     {usage: "send [--file path]... [text]", help: "Send the draft to the active contact and extras", run: cmdSend},
		"delete":   {usage: "delete [--everyone] <contact> <message-id>", help: "Delete a message", run: cmdDelete},
		"pin":      {usage: "pin <contact> <message-id>", help: "Pin a message", run: cmdPin},
		"unpin":    {usage: "unpin <contact>", help: "Clear the pinned message", run: cmdUnpin},
		"prefs":    {usage: "prefs [--notify b] [--dark b] [--receipts b] [--tab t]", help: "Show or update preferences", run: cmdPrefs},
		"presence": {usage: "presence <contact> <online|offline>", help: "Set a contact's presence", run: cmdPresence},
		"extras":   {usage: "extras [contact...]", help: "Set extra recipients of the next send", run: cmdExtras},
		"draft":    {usage: "draft [discard | remove <file>]", help: "Show or edit the draft", run: cmdDraft},
		"record":   {usage: "record <start|stop>", help: "Record a voice note into the draft", run: cmdRecord},
		"call":     {usage: "call <start|answer|end|mute|cam|dock|undock|get|list> ...", help: "Drive simulated calls", run: cmdCall},
		"outbox":   {usage: "outbox [--status s] [--limit n]", help: "List the send journal", run: cmdOutbox},
		"watch":    {usage: "watch [prefix...]", help: "Stream daemon events", run: cmdWatch, stream: true},
	}
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	tokenFlag := flag.String("token", "", "bearer token (minted from auth_secret when empty)")
	addrFlag := flag.String("addr", "", "daemon TCP address instead of the profile socket")
	flag.Usage = printUsage
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	token, err := resolveToken(*tokenFlag, name)
	if err != nil {
		fatal(err)
	}
	c, err := client.New(profile.SocketPath(name), client.Options{Token: token, Target: *addrFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if !cmd.stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	e := env{ctx: ctx, c: c, profile: name, json: *jsonFlag}
	if err := cmd.run(e, args[1:]); err != nil {
		fatal(err)
	}
}

// resolveToken returns the explicit token, or mints one when the profile
// config carries an auth secret.
func resolveToken(explicit, name string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.API.AuthSecret == "" {
		return "", nil
	}
	subject := os.Getenv("USER")
	if subject == "" {
		subject = "chatdeskctl"
	}
	token, _, err := auth.NewManager(cfg.API.AuthSecret, auth.DefaultTokenTTL).Issue(subject, name)
	return token, err
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatdeskctl [--profile <name>] [--json] [--token <t>] [--addr <host:port>] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(os.Stderr, "  %-58s %s\n", commands[n].usage, commands[n].help)
	}
}

func usageError(name string) error {
	return fmt.Errorf("usage: chatdeskctl %s", commands[name].usage)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
