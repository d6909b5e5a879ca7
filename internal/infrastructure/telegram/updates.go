package telegram

import (
	"context"
	"fmt"
	"strconv"

	"velestra/internal/ports"
)

// UpdateSource subscribes to admin commands via getUpdates with an explicit
// offset cursor: every poll asks for updates after the last one seen, so no
// separate seen-message ledger is needed and each command is delivered once.
type UpdateSource struct {
	client  *Client
	adminID int64
	offset  int64
}

var _ ports.CommandSource = (*UpdateSource)(nil)

// NewUpdateSource filters updates down to messages from the admin chat.
func NewUpdateSource(client *Client, adminChatID string) (*UpdateSource, error) {
	adminID, err := strconv.ParseInt(adminChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid admin chat id %q: %w", adminChatID, err)
	}
	return &UpdateSource{client: client, adminID: adminID}, nil
}

// PollCommands returns new admin commands and advances the cursor past them.
func (s *UpdateSource) PollCommands(ctx context.Context) ([]ports.InboundCommand, error) {
	updates, err := s.client.getUpdates(ctx, s.offset)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	var commands []ports.InboundCommand
	for _, u := range updates {
		if u.UpdateID >= s.offset {
			s.offset = u.UpdateID + 1
		}
		if u.Message == nil || u.Message.From.ID != s.adminID {
			continue
		}
		commands = append(commands, ports.InboundCommand{Text: u.Message.Text})
	}
	return commands, nil
}
