// ABOUTME: Interactive read-eval loop for the neora terminal client
// ABOUTME: Slash commands for auth, voice, language, and conversation control

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmajedshbeir/neora-client/internal/api"
	"github.com/lmajedshbeir/neora-client/internal/chat"
	"github.com/lmajedshbeir/neora-client/internal/config"
	"github.com/lmajedshbeir/neora-client/internal/session"
	"github.com/lmajedshbeir/neora-client/internal/stream"
	"github.com/lmajedshbeir/neora-client/internal/voice"
)

type repl struct {
	cfg     *config.Config
	client  *api.Client
	sess    *session.Session
	coord   *chat.Coordinator
	channel *stream.Channel
	rend    *renderer
	logger  *slog.Logger

	scanner *bufio.Scanner
}

func (r *repl) run(ctx context.Context) error {
	r.scanner = bufio.NewScanner(os.Stdin)

	if r.sess.Authenticated() {
		if u := r.sess.User(); u != nil {
			fmt.Printf("Signed in as %s %s (%s)\n", u.FirstName, u.LastName, u.Email)
		}
	} else {
		fmt.Println("Not signed in. Use /login <email> to start.")
	}
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	for {
		fmt.Print("> ")

		input, err := r.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if err := r.command(ctx, input); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			continue
		}

		if !r.sess.Authenticated() {
			fmt.Println("Sign in first: /login <email>")
			continue
		}
		r.coord.SendText(input)
	}
}

// readLine reads one line of input without blocking signal handling.
func (r *repl) readLine(ctx context.Context) (string, error) {
	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if r.scanner.Scan() {
			inputCh <- r.scanner.Text()
		} else if err := r.scanner.Err(); err != nil {
			errCh <- err
		} else {
			errCh <- io.EOF
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case input := <-inputCh:
		return input, nil
	}
}

func (r *repl) command(ctx context.Context, input string) error {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/help":
		printHelp()
		return nil
	case "/login":
		return r.login(ctx, args)
	case "/logout":
		return r.logout(ctx)
	case "/whoami":
		return r.whoami()
	case "/lang":
		return r.setLanguage(args)
	case "/history":
		r.rend.Transcript(r.coord.Snapshot())
		return nil
	case "/clear":
		return r.clear(ctx)
	case "/voice":
		return r.voice(args)
	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /login <email>   Sign in (prompts for password)")
	fmt.Println("  /logout          Sign out and drop local state")
	fmt.Println("  /whoami          Show the signed-in user")
	fmt.Println("  /lang <en|ar>    Set the conversation language")
	fmt.Println("  /history         Print the full transcript")
	fmt.Println("  /clear           Delete the conversation (asks to confirm)")
	fmt.Println("  /voice <file>    Send an audio file as a voice message")
	fmt.Println("  /quit            Exit")
}

func (r *repl) login(ctx context.Context, email string) error {
	if email == "" {
		return errors.New("usage: /login <email>")
	}

	fmt.Print("Password: ")
	password, err := r.readLine(ctx)
	if err != nil {
		return err
	}

	user, err := r.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	r.sess.SetUser(user)
	r.coord.SetUser(user.ID)
	r.channel.Connect()

	fmt.Printf("Welcome, %s!\n", user.FirstName)
	return nil
}

func (r *repl) logout(ctx context.Context) error {
	r.channel.Disconnect()
	if err := r.client.Logout(ctx); err != nil {
		r.logger.Warn("server logout failed", "error", err)
	}
	r.sess.Clear()
	fmt.Println("Signed out.")
	return nil
}

func (r *repl) whoami() error {
	u := r.sess.User()
	if u == nil {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s %s <%s>, language: %s\n", u.FirstName, u.LastName, u.Email, r.sess.LanguageName())
	return nil
}

func (r *repl) setLanguage(code string) error {
	switch code {
	case "en", "ar":
		r.sess.SetLanguage(code)
		fmt.Printf("Language set to %s.\n", session.LanguageName(code))
		return nil
	default:
		return errors.New("usage: /lang <en|ar>")
	}
}

func (r *repl) clear(ctx context.Context) error {
	if !r.sess.Authenticated() {
		return errors.New("not signed in")
	}
	r.coord.RequestClear()
	fmt.Print("Delete the entire conversation? [y/N]: ")
	answer, err := r.readLine(ctx)
	if err != nil {
		r.coord.CancelClear()
		return err
	}
	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		r.coord.ConfirmClear()
		fmt.Println("Conversation cleared.")
	} else {
		r.coord.CancelClear()
		fmt.Println("Kept.")
	}
	return nil
}

func (r *repl) voice(path string) error {
	if path == "" {
		return errors.New("usage: /voice <file>")
	}
	if !r.sess.Authenticated() {
		return errors.New("not signed in")
	}
	capture, err := captureFromFile(path)
	if err != nil {
		return err
	}
	r.coord.SendVoice(capture)
	fmt.Printf("Sending %s as a voice message...\n", filepath.Base(path))
	return nil
}

// captureFromFile copies an audio file into a temporary capture so the
// coordinator can release (and remove) it without touching the original.
func captureFromFile(path string) (*voice.Capture, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer src.Close()

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	tmp, err := os.CreateTemp("", "neora-voice-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("copying audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("closing capture file: %w", err)
	}

	return voice.NewCapture(tmp.Name(), contentTypeForExt(ext)), nil
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case "mp4", "m4a":
		return "audio/mp4"
	case "wav":
		return "audio/wav"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/webm;codecs=opus"
	}
}

// apiMessenger adapts the HTTP client to the coordinator's Messenger
// interface, converting wire messages into conversation entries.
type apiMessenger struct {
	client *api.Client
}

func (m *apiMessenger) SendMessage(ctx context.Context, text, language string) (chat.Message, error) {
	msg, err := m.client.SendMessage(ctx, text, language)
	if err != nil {
		return chat.Message{}, err
	}
	return toChatMessage(*msg), nil
}

func (m *apiMessenger) SendVoice(ctx context.Context, capture *voice.Capture, language string) (chat.Message, error) {
	msg, err := m.client.SendVoice(ctx, capture, language)
	if err != nil {
		return chat.Message{}, err
	}
	return toChatMessage(*msg), nil
}

func (m *apiMessenger) Messages(ctx context.Context, limit int) ([]chat.Message, error) {
	msgs, err := m.client.Messages(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = toChatMessage(msg)
	}
	return out, nil
}

func (m *apiMessenger) ClearMessages(ctx context.Context) error {
	return m.client.ClearMessages(ctx)
}

func toChatMessage(m api.Message) chat.Message {
	return chat.Message{
		ID:        m.ID,
		Kind:      chat.KindConfirmed,
		Role:      chat.Role(m.Role),
		Text:      m.Text,
		AudioURL:  m.AudioURL,
		Status:    chat.Status(m.Status),
		CreatedAt: m.CreatedAt,
	}
}
