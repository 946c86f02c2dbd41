// Package portalapi is the HTTP client for the portal backend: bulk message
// and thread fetches, the send procedure and membership queries. It is the
// only collaborator besides the push channel that the sync engine talks to.
package portalapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/executehouse/limpopo-connect/internal/config"
	"github.com/executehouse/limpopo-connect/internal/models"
	"github.com/executehouse/limpopo-connect/pkg/util"
	"github.com/go-resty/resty/v2"
	"github.com/segmentio/ksuid"
)

type PostMessageParams struct {
	RoomID   string
	ThreadID *string
	Body     string
}

type Client interface {
	// ListMessages returns the room's full message list, ordered by
	// created_at ascending. This is the synchronization point used on first
	// observe and after every reconnect.
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	// ListThreads returns the room's thread summaries.
	ListThreads(ctx context.Context, roomID string) ([]models.Thread, error)
	// PostMessage forwards a send to the server-side procedure. On success it
	// returns without the created message: the insert arrives through the
	// push channel, which is the single source of truth for existence.
	PostMessage(ctx context.Context, params PostMessageParams) error
	ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error)
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
}

type portalClient struct {
	// reads retry on transient failures; writes never do, because the server
	// cannot tell a retry from a duplicate. Sends instead carry an
	// idempotency key.
	reads  *resty.Client
	writes *resty.Client
}

func NewClient(conf *config.Config) Client {
	cfg := conf.PortalAPI

	reads := util.NewRestyClient(cfg.Timeout).SetBaseURL(cfg.BaseURL)
	writes := resty.New().SetTimeout(cfg.Timeout).SetBaseURL(cfg.BaseURL)
	if cfg.Token != "" {
		reads.SetAuthToken(cfg.Token)
		writes.SetAuthToken(cfg.Token)
	}

	return &portalClient{
		reads:  reads,
		writes: writes,
	}
}

type apiError struct {
	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type listMessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

type listThreadsResponse struct {
	Threads []models.Thread `json:"threads"`
}

type listMembersResponse struct {
	Members []models.RoomMember `json:"members"`
}

func (c *portalClient) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var out listMessagesResponse
	var apiErr apiError
	resp, err := c.reads.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/v1/rooms/{room_id}/messages")
	if err != nil {
		return nil, fmt.Errorf("list messages for room %s: %w", roomID, err)
	}
	if resp.IsError() {
		return nil, mapAPIError(resp.StatusCode(), apiErr)
	}
	return out.Messages, nil
}

func (c *portalClient) ListThreads(ctx context.Context, roomID string) ([]models.Thread, error) {
	var out listThreadsResponse
	var apiErr apiError
	resp, err := c.reads.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/v1/rooms/{room_id}/threads")
	if err != nil {
		return nil, fmt.Errorf("list threads for room %s: %w", roomID, err)
	}
	if resp.IsError() {
		return nil, mapAPIError(resp.StatusCode(), apiErr)
	}
	return out.Threads, nil
}

func (c *portalClient) PostMessage(ctx context.Context, params PostMessageParams) error {
	body := map[string]any{
		"body": params.Body,
	}
	if params.ThreadID != nil {
		body["thread_id"] = *params.ThreadID
	}

	var apiErr apiError
	resp, err := c.writes.R().
		SetContext(ctx).
		SetPathParam("room_id", params.RoomID).
		SetHeader("Idempotency-Key", ksuid.New().String()).
		SetBody(body).
		SetError(&apiErr).
		Post("/api/v1/rooms/{room_id}/messages")
	if err != nil {
		return fmt.Errorf("post message to room %s: %w", params.RoomID, err)
	}
	if resp.IsError() {
		return mapAPIError(resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *portalClient) ListMembers(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	var out listMembersResponse
	var apiErr apiError
	resp, err := c.reads.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/v1/rooms/{room_id}/members")
	if err != nil {
		return nil, fmt.Errorf("list members for room %s: %w", roomID, err)
	}
	if resp.IsError() {
		return nil, mapAPIError(resp.StatusCode(), apiErr)
	}
	return out.Members, nil
}

func (c *portalClient) JoinRoom(ctx context.Context, roomID string) error {
	var apiErr apiError
	resp, err := c.writes.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetError(&apiErr).
		Post("/api/v1/rooms/{room_id}/members")
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	if resp.IsError() {
		return mapAPIError(resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *portalClient) LeaveRoom(ctx context.Context, roomID string) error {
	var apiErr apiError
	resp, err := c.writes.R().
		SetContext(ctx).
		SetPathParam("room_id", roomID).
		SetError(&apiErr).
		Delete("/api/v1/rooms/{room_id}/members")
	if err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	if resp.IsError() {
		return mapAPIError(resp.StatusCode(), apiErr)
	}
	return nil
}

// mapAPIError converts backend error payloads into the typed taxonomy. The
// error code wins over the HTTP status when both are present.
func mapAPIError(status int, apiErr apiError) error {
	switch apiErr.ErrorCode {
	case "unauthenticated":
		return models.ErrUnauthenticated
	case "not_a_member":
		return models.ErrNotAMember
	case "thread_room_mismatch":
		return models.ErrThreadRoomMismatch
	case "room_not_found":
		return models.ErrRoomNotFound
	}

	switch status {
	case http.StatusUnauthorized:
		return models.ErrUnauthenticated
	case http.StatusForbidden:
		return models.ErrNotAMember
	case http.StatusPreconditionFailed, http.StatusConflict:
		return models.ErrThreadRoomMismatch
	case http.StatusNotFound:
		return models.ErrRoomNotFound
	}

	if apiErr.ErrorMessage != "" {
		return fmt.Errorf("portal api error (status %d): %s", status, apiErr.ErrorMessage)
	}
	return fmt.Errorf("portal api error: status %d", status)
}
