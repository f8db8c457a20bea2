package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/instantmart/admin-console/internal/domain/api"
	"github.com/instantmart/admin-console/internal/domain/notification"
	apperrors "github.com/instantmart/admin-console/internal/errors"
	"github.com/instantmart/admin-console/internal/ports"
)

// NotificationClient implements ports.NotificationAPI over the request gateway.
type NotificationClient struct {
	req ports.Requester
}

var _ ports.NotificationAPI = (*NotificationClient)(nil)

// NewNotificationClient creates a NotificationClient sending through req.
func NewNotificationClient(req ports.Requester) *NotificationClient {
	return &NotificationClient{req: req}
}

// List fetches one page of notifications.
func (c *NotificationClient) List(ctx context.Context, page, pageSize int) (notification.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	env := c.req.Send(ctx, "/notifications?"+q.Encode(), api.RequestOptions{Method: http.MethodGet})
	out, err := decodePage(env)
	if err != nil {
		return notification.Page{}, fmt.Errorf("list notifications: %w", err)
	}
	if out.Page == 0 {
		out.Page = page
	}
	if out.PageSize == 0 {
		out.PageSize = pageSize
	}
	return out, nil
}

// decodePage accepts either a page object or a bare array of notifications.
func decodePage(env api.Envelope) (notification.Page, error) {
	if err := env.Error(); err != nil {
		return notification.Page{}, err
	}
	var items []notification.Notification
	if json.Unmarshal(env.Data, &items) == nil {
		return notification.Page{Items: items, TotalCount: len(items)}, nil
	}
	return api.DecodeData[notification.Page](env)
}

// UnreadCount returns the server-side unread count. The payload may be a bare
// number or an object with count or unreadCount.
func (c *NotificationClient) UnreadCount(ctx context.Context) (int, error) {
	env := c.req.Send(ctx, "/notifications/unread-count", api.RequestOptions{Method: http.MethodGet})
	if err := env.Error(); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	var n int
	if json.Unmarshal(env.Data, &n) == nil {
		return n, nil
	}
	var obj struct {
		Count       *int `json:"count"`
		UnreadCount *int `json:"unreadCount"`
	}
	if err := json.Unmarshal(env.Data, &obj); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeParse, api.MsgParseFailure)
	}
	switch {
	case obj.UnreadCount != nil:
		return *obj.UnreadCount, nil
	case obj.Count != nil:
		return *obj.Count, nil
	default:
		return 0, apperrors.New(apperrors.ErrCodeParse, "unread count missing from response")
	}
}

// MarkAsRead flags ids as read on the server.
func (c *NotificationClient) MarkAsRead(ctx context.Context, ids []int64) error {
	env := c.req.Send(ctx, "/notifications/mark-as-read", api.RequestOptions{
		Method: http.MethodPut,
		Body:   map[string][]int64{"ids": ids},
	})
	if err := env.Error(); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// Delete removes one notification on the server.
func (c *NotificationClient) Delete(ctx context.Context, id int64) error {
	env := c.req.Send(ctx, "/notifications/"+strconv.FormatInt(id, 10), api.RequestOptions{Method: http.MethodDelete})
	if err := env.Error(); err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return nil
}

// Acknowledge confirms receipt of a pushed notification.
func (c *NotificationClient) Acknowledge(ctx context.Context, id int64) error {
	env := c.req.Send(ctx, "/notifications/"+strconv.FormatInt(id, 10)+"/acknowledge", api.RequestOptions{Method: http.MethodPost})
	if err := env.Error(); err != nil {
		return fmt.Errorf("acknowledge notification %d: %w", id, err)
	}
	return nil
}
