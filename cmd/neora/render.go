// ABOUTME: Terminal transcript rendering from coordinator snapshots
// ABOUTME: Streams assistant text incrementally, prints errors and notices

package main

import (
	"fmt"
	"sync"

	"github.com/fatih/color"

	"github.com/lmajedshbeir/neora-client/internal/chat"
)

// lineClosed marks a message whose output line has been terminated.
const lineClosed = -1

// renderer turns conversation snapshots into terminal output. It only
// prints what the user has not seen yet: the growing tail of the streaming
// assistant reply and newly synthesized errors. User echoes, placeholders,
// and post-turn refreshes stay silent.
type renderer struct {
	mu      sync.Mutex
	printed map[string]int // message ID -> bytes printed, or lineClosed

	assistant *color.Color
	user      *color.Color
	errc      *color.Color
	faint     *color.Color
}

func newRenderer() *renderer {
	return &renderer{
		printed:   make(map[string]int),
		assistant: color.New(color.FgCyan, color.Bold),
		user:      color.New(color.FgGreen),
		errc:      color.New(color.FgRed),
		faint:     color.New(color.FgHiBlack),
	}
}

// Apply renders the newest entry of a snapshot. Runs on the coordinator
// loop, so it must stay fast.
func (r *renderer) Apply(snap []chat.Message) {
	if len(snap) == 0 {
		return
	}
	last := snap[len(snap)-1]
	if last.Role != chat.RoleAssistant || last.Kind == chat.KindPlaceholder {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n, seen := r.printed[last.ID]
	switch last.Status {
	case chat.StatusStreaming:
		if !seen {
			r.assistant.Print("\nneora> ")
		}
		if n != lineClosed && len(last.Text) > n {
			fmt.Print(last.Text[n:])
			r.printed[last.ID] = len(last.Text)
		}
	case chat.StatusError:
		if !seen {
			r.printed[last.ID] = lineClosed
			r.errc.Printf("\nneora> %s\n", last.Text)
		}
	case chat.StatusDelivered:
		if seen && n != lineClosed {
			fmt.Println()
			r.printed[last.ID] = lineClosed
		}
	}
}

// Transcript prints a full conversation, oldest first.
func (r *renderer) Transcript(snap []chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snap) == 0 {
		fmt.Println("(no messages)")
		return
	}
	for _, m := range snap {
		switch m.Role {
		case chat.RoleUser:
			r.user.Print("you>   ")
		default:
			r.assistant.Print("neora> ")
		}
		if m.AudioURL != "" && m.Text == "" {
			r.faint.Printf("[voice message] %s\n", m.AudioURL)
			continue
		}
		fmt.Println(m.Text)
	}
}

// Notice prints an out-of-band status line.
func (r *renderer) Notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faint.Printf("\n"+format+"\n", args...)
}
