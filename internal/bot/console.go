package bot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"sketchbot/internal/generation"
)

// HandleFunc processes one inbound command with a replier bound to it.
type HandleFunc func(ctx context.Context, cmd Command, replier Replier) error

// Gateway connects the command layer to a chat platform. The platform layer
// itself is an external collaborator; adapters implement this contract.
type Gateway interface {
	// Run delivers inbound commands to handle until ctx ends.
	Run(ctx context.Context, handle HandleFunc) error
	Notifier
}

// ConsoleGateway is a development Gateway reading `!command args` lines from
// an input stream. Trailing http(s) tokens become attachment URLs. Text
// replies print to the output stream and binary payloads land under OutDir.
type ConsoleGateway struct {
	In     io.Reader
	Out    io.Writer
	OutDir string
	UserID string
	Logger zerolog.Logger
}

// Run reads commands line by line until EOF or context cancellation.
func (g *ConsoleGateway) Run(ctx context.Context, handle HandleFunc) error {
	scanner := bufio.NewScanner(g.In)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "!") {
			continue
		}
		cmd := g.parse(line[1:])
		if err := handle(ctx, cmd, consoleReplier{gateway: g}); err != nil {
			g.Logger.Error().Err(err).Str("command", cmd.Name).Msg("command failed")
			fmt.Fprintf(g.Out, "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read console input: %w", err)
	}
	return nil
}

// DirectMessage prints the private notification with its addressee.
func (g *ConsoleGateway) DirectMessage(ctx context.Context, userID, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(g.Out, "[dm %s] %s\n", userID, content)
	return err
}

func (g *ConsoleGateway) parse(line string) Command {
	name, args, _ := strings.Cut(line, " ")

	var attachments []string
	fields := strings.Fields(args)
	for len(fields) > 0 {
		last := fields[len(fields)-1]
		if !strings.HasPrefix(last, "http://") && !strings.HasPrefix(last, "https://") {
			break
		}
		attachments = append([]string{last}, attachments...)
		fields = fields[:len(fields)-1]
	}

	return Command{
		Name:           name,
		Args:           strings.Join(fields, " "),
		UserID:         g.UserID,
		Mention:        g.UserID,
		AttachmentURLs: attachments,
	}
}

type consoleReplier struct {
	gateway *ConsoleGateway
}

func (r consoleReplier) Send(ctx context.Context, reply generation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g := r.gateway
	if reply.Content != "" {
		fmt.Fprintln(g.Out, reply.Content)
	}
	if reply.EmbedDescription != "" {
		fmt.Fprintf(g.Out, "> %s\n", reply.EmbedDescription)
	}
	if len(reply.FileData) > 0 && reply.FileName != "" {
		path := filepath.Join(g.OutDir, filepath.Base(reply.FileName))
		if err := os.WriteFile(path, reply.FileData, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(g.Out, "saved %s\n", path)
	}
	return nil
}
