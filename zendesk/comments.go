package zendesk

import (
	"context"
	"fmt"

	"github.com/poiesic/deskrag/core"
)

// ListComments returns the full comment thread for a ticket in
// server-returned order.
func (c *Client) ListComments(ctx context.Context, ticketID int64) ([]core.Comment, error) {
	var comments []core.Comment

	page := fmt.Sprintf("/tickets/%d/comments.json", ticketID)
	for page != "" {
		var envelope struct {
			Comments []apiComment `json:"comments"`
			NextPage *string      `json:"next_page"`
		}
		if err := c.getJSON(ctx, page, &envelope); err != nil {
			return nil, err
		}

		for _, comment := range envelope.Comments {
			comments = append(comments, comment.toCore())
		}

		page = ""
		if envelope.NextPage != nil && *envelope.NextPage != "" {
			page = *envelope.NextPage
			if err := c.pagePause(ctx); err != nil {
				return nil, err
			}
		}
	}

	return comments, nil
}
