package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"sketchbot/internal/domain"
	"sketchbot/internal/generation"
	"sketchbot/internal/prompt"
)

// Command is one inbound invocation delivered by the chat-platform layer:
// a command name, the opaque raw argument string, the invoking user, and
// any attachment URLs (already merged per MergeAttachments).
type Command struct {
	Name           string
	Args           string
	UserID         string
	Mention        string
	AttachmentURLs []string
}

// Replier sends replies back to wherever the command came from.
type Replier interface {
	Send(ctx context.Context, reply generation.Reply) error
}

// Notifier delivers a private message to a specific user, used for gift
// notifications.
type Notifier interface {
	DirectMessage(ctx context.Context, userID, content string) error
}

// Handler routes chat commands into the orchestration and ledger core.
type Handler struct {
	Ledger       domain.Ledger
	Orchestrator *generation.Orchestrator
	Dispatcher   *generation.Dispatcher
	Parser       prompt.Parser
	Expander     prompt.Expander
	Notifier     Notifier
	AdminID      string
	Logger       zerolog.Logger
}

// Handle executes one command. User input problems become short replies and
// a nil error; collaborator failures propagate.
func (h *Handler) Handle(ctx context.Context, cmd Command, replier Replier) error {
	switch cmd.Name {
	case "sketch":
		return h.sketch(ctx, cmd, replier)
	case "balance":
		return h.balance(ctx, cmd, replier)
	case "credit":
		return h.credit(ctx, cmd, replier)
	case "gift":
		return h.gift(ctx, cmd, replier)
	default:
		h.Logger.Debug().Str("command", cmd.Name).Msg("unknown command ignored")
		return nil
	}
}

func (h *Handler) sketch(ctx context.Context, cmd Command, replier Replier) error {
	opts := h.Parser.Parse(cmd.Args)
	opts.Prompt = h.Expander.Expand(opts.Prompt)

	deliveries, genErr := h.Orchestrator.Generate(ctx, generation.Request{
		UserID:         cmd.UserID,
		Options:        opts,
		AttachmentURLs: cmd.AttachmentURLs,
	})
	switch {
	case errors.Is(genErr, domain.ErrNoAttachment):
		return h.sendText(ctx, replier, "Please attach at least one image for the main face.")
	case errors.Is(genErr, domain.ErrInsufficientCredits):
		balance, err := h.Ledger.GetBalance(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		return h.sendText(ctx, replier, fmt.Sprintf(
			"You do not have enough credits to perform this operation. Your current balance is %d credits.", balance))
	}

	// Even when settlement stopped early, whatever was billed is delivered.
	if len(deliveries) > 0 {
		if err := h.Dispatcher.Dispatch(ctx, replier, cmd.Mention, opts, deliveries); err != nil {
			return err
		}
	}
	return genErr
}

func (h *Handler) balance(ctx context.Context, cmd Command, replier Replier) error {
	balance, err := h.Ledger.GetBalance(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	return h.sendText(ctx, replier, fmt.Sprintf("You currently have %d credits.", balance))
}

func (h *Handler) credit(ctx context.Context, cmd Command, replier Replier) error {
	if cmd.UserID != h.AdminID {
		return h.sendText(ctx, replier, "You do not have permission to use this command.")
	}
	amount, target, ok := parseAmountAndUser(cmd.Args)
	if !ok {
		return h.sendText(ctx, replier, "Usage: credit <amount> <user>")
	}
	if amount <= 0 {
		return h.sendText(ctx, replier, "The amount of credits to add must be a positive number.")
	}

	updated, err := h.Ledger.Credit(ctx, target, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", target, err)
	}
	return h.sendText(ctx, replier, fmt.Sprintf(
		"Added %d to %s for a total balance of %d credits.", amount, mention(target), updated))
}

func (h *Handler) gift(ctx context.Context, cmd Command, replier Replier) error {
	amount, target, ok := parseAmountAndUser(cmd.Args)
	if !ok {
		return h.sendText(ctx, replier, "Usage: gift <amount> <user>")
	}
	if amount <= 0 {
		return h.sendText(ctx, replier, "The amount of credits to gift must be a positive number.")
	}

	remaining, err := h.Ledger.Transfer(ctx, cmd.UserID, target, amount)
	if errors.Is(err, domain.ErrInsufficientCredits) {
		balance, balErr := h.Ledger.GetBalance(ctx, cmd.UserID)
		if balErr != nil {
			return fmt.Errorf("read balance: %w", balErr)
		}
		return h.sendText(ctx, replier, fmt.Sprintf(
			"You do not have enough credits to gift. Your current balance is %d credits.", balance))
	}
	if err != nil {
		return fmt.Errorf("transfer to %s: %w", target, err)
	}

	if err := h.sendText(ctx, replier, fmt.Sprintf(
		"You have successfully gifted %d credits to %s. Your new balance is %d credits.", amount, mention(target), remaining)); err != nil {
		return err
	}

	recipientBalance, err := h.Ledger.GetBalance(ctx, target)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if err := h.Notifier.DirectMessage(ctx, target, fmt.Sprintf(
		"You have received %d credits from %s. Your new balance is %d credits.", amount, cmd.Mention, recipientBalance)); err != nil {
		// The transfer already settled; a missed notification is not worth
		// failing the command.
		h.Logger.Warn().Err(err).Str("user_id", target).Msg("gift notification failed")
	}
	return nil
}

func (h *Handler) sendText(ctx context.Context, replier Replier, text string) error {
	return replier.Send(ctx, generation.Reply{Content: text})
}

// MergeAttachments combines the triggering message's attachments with those
// of a replied-to message, current message first.
func MergeAttachments(current, referenced []string) []string {
	merged := make([]string, 0, len(current)+len(referenced))
	merged = append(merged, current...)
	merged = append(merged, referenced...)
	return merged
}

// parseAmountAndUser splits `<amount> <user>` arguments. The user token may
// carry platform mention decorations like <@123456>.
func parseAmountAndUser(args string) (int64, string, bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, "", false
	}
	amount, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	user := strings.Trim(fields[1], "<@!>")
	if user == "" {
		return 0, "", false
	}
	return amount, user, true
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
