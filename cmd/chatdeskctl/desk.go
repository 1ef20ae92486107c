package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/chatdesk/internal/api"
	"github.com/matheus3301/chatdesk/internal/chat"
)

func cmdStatus(e env, _ []string) error {
	resp, err := e.c.Session.GetStatus(e.ctx)
	if err != nil {
		return err
	}
	e.out(resp, func() {
		fmt.Printf("Profile:  %s\n", resp.Profile)
		fmt.Printf("Status:   %s\n", resp.Status)
		if resp.Reason != "" {
			fmt.Printf("Reason:   %s\n", resp.Reason)
		}
		fmt.Printf("Uptime:   %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
		fmt.Printf("Backend:  %s (%d saves, %d pending)\n", resp.Backend, resp.Saves, resp.PendingWrites)
		if resp.PersistError != "" {
			fmt.Printf("Persist:  %s\n", resp.PersistError)
		}
		fmt.Printf("Contacts: %d (%d unread)\n", resp.Contacts, resp.Unread)
		fmt.Printf("Messages: %d in %d conversations\n", resp.Messages, resp.Conversations)
		fmt.Printf("Calls:    %d records\n", resp.ActiveCalls)
	})
	return nil
}

func cmdContacts(e env, args []string) error {
	resp, err := e.c.Desk.ListContacts(e.ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	e.out(resp, func() {
		if len(resp.Contacts) == 0 {
			fmt.Println("No contacts found.")
			return
		}
		for _, c := range resp.Contacts {
			presence := "offline"
			if c.Online {
				presence = "online"
			}
			badge := ""
			if c.Unread > 0 {
				badge = fmt.Sprintf(" [%d]", c.Unread)
			}
			fmt.Printf("%-12s %-20s %-8s %s%s\n", c.ID, terminalSafe(c.Name), presence, terminalSafe(c.LastMessagePreview), badge)
		}
		fmt.Printf("\n%d online, %d offline\n", resp.Online, resp.Offline)
	})
	return nil
}

func cmdShow(e env, args []string) error {
	if len(args) != 1 {
		return usageError("show")
	}
	resp, err := e.c.Desk.GetConversation(e.ctx, args[0])
	if err != nil {
		return err
	}
	e.out(resp, func() {
		for _, m := range resp.Messages {
			printMessage(m, m.ID == resp.PinnedMessageID)
		}
	})
	return nil
}

func printMessage(m chat.Message, pinned bool) {
	at := time.UnixMilli(m.CreatedAt).Format("15:04")
	text := terminalSafe(m.Display())
	for _, a := range m.Attachments {
		if text != "" {
			text += " "
		}
		text += fmt.Sprintf("[%s %s]", terminalSafe(a.Name), chat.FormatSize(a.Size))
	}
	mark := ""
	if pinned {
		mark = " (pinned)"
	}
	fmt.Printf("%s %-10s %s  <%s> %s%s\n", at, m.SenderID, text, m.Status, m.ID, mark)
}

func cmdOpen(e env, args []string) error {
	if len(args) != 1 {
		return usageError("open")
	}
	return changed(e)(e.c.Desk.SetActive(e.ctx, args[0]))
}

func cmdRead(e env, args []string) error {
	if len(args) != 1 {
		return usageError("read")
	}
	return changed(e)(e.c.Desk.MarkRead(e.ctx, args[0]))
}

func cmdVisible(e env, _ []string) error {
	return changed(e)(e.c.Desk.Visible(e.ctx))
}

func cmdReceive(e env, args []string) error {
	if len(args) < 2 {
		return usageError("receive")
	}
	resp, err := e.c.Desk.Receive(e.ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	e.out(resp, func() { printMessage(resp.Message, false) })
	return nil
}

func cmdCreate(e env, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	id := fs.String("id", "", "contact id (generated when empty)")
	title := fs.String("title", "", "contact title")
	first := fs.String("first", "", "first incoming message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("create")
	}
	resp, err := e.c.Desk.CreateContact(e.ctx, api.CreateContactRequest{
		ID:           *id,
		Name:         strings.Join(fs.Args(), " "),
		Title:        *title,
		FirstMessage: *first,
	})
	if err != nil {
		return err
	}
	e.out(resp, func() { fmt.Printf("Created %s (%s)\n", resp.Contact.Name, resp.Contact.ID) })
	return nil
}

// stringList collects a repeated flag.
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func cmdSend(e env, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	var files stringList
	fs.Var(&files, "file", "attach a local file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if len(files) > 0 {
		uploads := make([]api.FileUpload, 0, len(files))
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			uploads = append(uploads, api.FileUpload{Name: filepath.Base(path), Data: data})
		}
		if _, err := e.c.Desk.Compose(e.ctx, api.ComposeRequest{Files: uploads}); err != nil {
			return err
		}
	}

	var text *string
	if fs.NArg() > 0 {
		t := strings.Join(fs.Args(), " ")
		text = &t
	}
	resp, err := e.c.Desk.Send(e.ctx, text)
	if err != nil {
		return err
	}
	e.out(resp, func() {
		for _, d := range resp.Deliveries {
			fmt.Printf("-> %-12s %s\n", d.ContactID, d.Message.ID)
		}
	})
	return nil
}

func cmdDelete(e env, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	everyone := fs.Bool("everyone", false, "replace the message with a tombstone for everyone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageError("delete")
	}
	if *everyone {
		return changed(e)(e.c.Desk.DeleteForEveryone(e.ctx, fs.Arg(0), fs.Arg(1)))
	}
	return changed(e)(e.c.Desk.DeleteForMe(e.ctx, fs.Arg(0), fs.Arg(1)))
}

func cmdPin(e env, args []string) error {
	if len(args) != 2 {
		return usageError("pin")
	}
	return changed(e)(e.c.Desk.Pin(e.ctx, args[0], args[1]))
}

func cmdUnpin(e env, args []string) error {
	if len(args) != 1 {
		return usageError("unpin")
	}
	return changed(e)(e.c.Desk.Unpin(e.ctx, args[0]))
}

// boolFlag records a bool flag only when it is given.
func boolFlag(fs *flag.FlagSet, name, usage string) **bool {
	var p *bool
	fs.Func(name, usage, func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		p = &b
		return nil
	})
	return &p
}

func cmdPrefs(e env, args []string) error {
	fs := flag.NewFlagSet("prefs", flag.ContinueOnError)
	notify := boolFlag(fs, "notify", "enable notifications")
	dark := boolFlag(fs, "dark", "dark message bubbles")
	receipts := boolFlag(fs, "receipts", "send read receipts")
	tab := fs.String("tab", "", "last tab: contacts, chat or settings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := api.PreferencesRequest{NotifyEnabled: *notify, DarkBubbles: *dark, ReadReceipts: *receipts}
	if *tab != "" {
		t := chat.Tab(*tab)
		req.LastTab = &t
	}

	var resp *api.PreferencesResponse
	var err error
	if fs.NFlag() == 0 {
		resp, err = e.c.Desk.GetPreferences(e.ctx)
	} else {
		resp, err = e.c.Desk.UpdatePreferences(e.ctx, req)
	}
	if err != nil {
		return err
	}
	e.out(resp, func() {
		p := resp.Preferences
		fmt.Printf("Notifications: %v\n", p.NotifyEnabled)
		fmt.Printf("Dark bubbles:  %v\n", p.DarkBubbles)
		fmt.Printf("Read receipts: %v\n", p.ReadReceipts)
		fmt.Printf("Active:        %s\n", p.ActiveContactID)
		fmt.Printf("Last tab:      %s\n", p.LastTab)
	})
	return nil
}

func cmdPresence(e env, args []string) error {
	if len(args) != 2 || (args[1] != "online" && args[1] != "offline") {
		return usageError("presence")
	}
	return changed(e)(e.c.Desk.SetOnline(e.ctx, args[0], args[1] == "online"))
}

func cmdExtras(e env, args []string) error {
	resp, err := e.c.Desk.SetExtraRecipients(e.ctx, args)
	if err != nil {
		return err
	}
	e.out(resp, func() {
		if len(resp.ContactIDs) == 0 {
			fmt.Println("No extra recipients.")
			return
		}
		fmt.Printf("Extra recipients: %s\n", strings.Join(resp.ContactIDs, ", "))
	})
	return nil
}

func cmdDraft(e env, args []string) error {
	var resp *api.DraftResponse
	var err error
	switch {
	case len(args) == 0:
		resp, err = e.c.Desk.GetDraft(e.ctx)
	case args[0] == "discard" && len(args) == 1:
		resp, err = e.c.Desk.DiscardDraft(e.ctx)
	case args[0] == "remove" && len(args) == 2:
		resp, err = e.c.Desk.RemoveFile(e.ctx, args[1])
	default:
		return usageError("draft")
	}
	if err != nil {
		return err
	}
	printDraft(e, resp)
	return nil
}

func cmdRecord(e env, args []string) error {
	if len(args) != 1 {
		return usageError("record")
	}
	var resp *api.DraftResponse
	var err error
	switch args[0] {
	case "start":
		resp, err = e.c.Desk.StartRecording(e.ctx)
	case "stop":
		resp, err = e.c.Desk.StopRecording(e.ctx)
	default:
		return usageError("record")
	}
	if err != nil {
		return err
	}
	printDraft(e, resp)
	return nil
}

func printDraft(e env, resp *api.DraftResponse) {
	e.out(resp, func() {
		fmt.Printf("Text:  %q\n", resp.Draft.Text)
		for _, f := range resp.Draft.Files {
			fmt.Printf("File:  %s (%s, %s)\n", f.Name, f.MIME, chat.FormatSize(f.Size))
		}
		if resp.Recording {
			fmt.Printf("Recording for %s\n", (time.Duration(resp.RecordingMs) * time.Millisecond).Round(time.Second))
		}
	})
}

func changed(e env) func(*api.ChangedResponse, error) error {
	return func(resp *api.ChangedResponse, err error) error {
		if err != nil {
			return err
		}
		e.out(resp, func() {
			if resp.Changed {
				fmt.Println("OK")
			} else {
				fmt.Println("No change.")
			}
		})
		return nil
	}
}
