package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/matheus3301/chatdesk/internal/api"
	"github.com/matheus3301/chatdesk/internal/call"
)

func cmdCall(e env, args []string) error {
	if len(args) == 0 {
		return usageError("call")
	}
	sub, rest := args[0], args[1:]

	var participant string
	if sub != "start" && sub != "list" {
		if len(rest) > 1 {
			return usageError("call")
		}
		if len(rest) == 1 {
			participant = rest[0]
		}
	}

	var resp *api.CallResponse
	var err error
	switch sub {
	case "start":
		return callStart(e, rest)
	case "list":
		return callList(e)
	case "answer":
		resp, err = e.c.Call.Answer(e.ctx, participant)
	case "end":
		resp, err = e.c.Call.End(e.ctx, participant)
	case "mute":
		resp, err = e.c.Call.ToggleMute(e.ctx, participant)
	case "cam":
		resp, err = e.c.Call.ToggleCam(e.ctx, participant)
	case "dock":
		resp, err = e.c.Call.Dock(e.ctx, participant)
	case "undock":
		resp, err = e.c.Call.Undock(e.ctx, participant)
	case "get":
		resp, err = e.c.Call.Get(e.ctx, participant)
	default:
		return usageError("call")
	}
	if err != nil {
		return err
	}
	e.out(resp, func() {
		if !resp.OK {
			fmt.Println("No change.")
		}
		if resp.Call.ID != "" {
			printCall(participant, resp.Call)
		}
	})
	return nil
}

func callStart(e env, args []string) error {
	fs := flag.NewFlagSet("call start", flag.ContinueOnError)
	video := fs.Bool("video", false, "place a video call")
	from := fs.String("from", "", "caller id (the local user when empty)")
	incoming := fs.Bool("incoming", false, "surface the call as incoming on the caller's side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: chatdeskctl call start [--video] [--from id] [--incoming] <contact>")
	}

	req := api.StartCallRequest{Type: call.Audio, From: *from, To: fs.Arg(0), Direction: call.Outgoing}
	if *video {
		req.Type = call.Video
	}
	if *incoming {
		req.Direction = call.Incoming
	}
	resp, err := e.c.Call.Start(e.ctx, req)
	if err != nil {
		return err
	}
	e.out(resp, func() { printCall(*from, resp.Call) })
	return nil
}

func callList(e env) error {
	resp, err := e.c.Call.List(e.ctx)
	if err != nil {
		return err
	}
	e.out(resp, func() {
		if len(resp.Calls) == 0 {
			fmt.Println("No calls.")
			return
		}
		ids := make([]string, 0, len(resp.Calls))
		for id := range resp.Calls {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			printCall(id, resp.Calls[id])
		}
		if resp.Elapsed != "" {
			fmt.Printf("\nConnected %s (call %s)\n", resp.Elapsed, resp.TickCallID)
		}
	})
	return nil
}

func printCall(participant string, c call.Call) {
	if participant == "" {
		participant = "me"
	}
	flags := ""
	if c.MicMuted {
		flags += " muted"
	}
	if c.CamOff {
		flags += " cam-off"
	}
	if !c.Docked {
		flags += " modal"
	}
	fmt.Printf("%-10s %s %s call with %s: %s%s\n", participant, c.Direction, c.Type, c.WithContactID, c.Status, flags)
}

func cmdOutbox(e env, args []string) error {
	fs := flag.NewFlagSet("outbox", flag.ContinueOnError)
	status := fs.String("status", "", "queued, sent or failed")
	limit := fs.Int("limit", 20, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, err := e.c.Session.ListOutbox(e.ctx, api.ListOutboxRequest{Status: *status, Limit: *limit})
	if err != nil {
		return err
	}
	e.out(resp, func() {
		for _, en := range resp.Entries {
			at := time.UnixMilli(en.CreatedAt).Format(time.DateTime)
			line := fmt.Sprintf("%s %-7s %-12s %d recipients, %d files", at, en.Status, en.ContactID, en.Recipients, en.Attachments)
			if en.ErrorMessage != "" {
				line += ": " + en.ErrorMessage
			}
			fmt.Println(line)
		}
		fmt.Printf("\nqueued %d, sent %d, failed %d\n", resp.Counts["queued"], resp.Counts["sent"], resp.Counts["failed"])
	})
	return nil
}

func cmdWatch(e env, prefixes []string) error {
	err := e.c.Session.Watch(e.ctx, prefixes, func(ev api.Envelope) error {
		if e.json {
			outputJSON(ev)
			return nil
		}
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return err
		}
		at := time.UnixMilli(ev.OccurredAtUnixMs).Format("15:04:05.000")
		fmt.Printf("%s %-28s %s\n", at, ev.Kind, payload)
		return nil
	})
	if e.ctx.Err() != nil {
		return nil
	}
	return err
}
