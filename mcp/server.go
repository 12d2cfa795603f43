// Package mcpsrv exposes the chat store as Model Context Protocol tools so an
// agent or a UI backend can list, read, save, clear and share chats.
//
// Tool results are JSON text. A chat that is missing, unshared or owned by
// someone else is returned as null; store failures are tool errors.
package mcpsrv

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xyzj/toolbox/json"

	chatstore "github.com/xyzj/chatstore"
	"github.com/xyzj/chatstore/chat"
)

const (
	maxIDLength = 256

	noChatsMessage = "No chats to clear"
)

type (
	// Opt contains configuration options for the MCP server.
	Opt struct {
		name    string // Server name announced on initialize
		version string // Server version announced on initialize
	}
	// Opts is a function type for configuring Server options.
	Opts func(opt *Opt)
)

// WithName sets the server name announced to clients.
func WithName(n string) Opts {
	return func(opt *Opt) {
		opt.name = n
	}
}

// WithVersion sets the server version announced to clients.
func WithVersion(v string) Opts {
	return func(opt *Opt) {
		opt.version = v
	}
}

// Server binds a chatstore.Service to an MCP server.
type Server struct {
	svc chatstore.Service
	srv *server.MCPServer
}

type clearResult struct {
	Cleared bool   `json:"cleared,omitempty"`
	Error   string `json:"error,omitempty"`
}

type saveResult struct {
	ID string `json:"id"`
}

// New registers the chat tools for svc.
//
// Parameters:
//   - svc: The chatstore.Service the tools call into
//   - opts: Variadic Opts functions to configure the server (e.g., name, version)
//
// Returns:
//   - *Server: A server exposing list_chats, get_chat, get_shared_chat,
//     save_chat, clear_chats and share_chat
func New(svc chatstore.Service, opts ...Opts) *Server {
	opt := &Opt{
		name:    "chatstore",
		version: "1.0.0",
	}
	for _, o := range opts {
		o(opt)
	}
	s := &Server{
		svc: svc,
		srv: server.NewMCPServer(opt.name, opt.version, server.WithToolCapabilities(false)),
	}
	s.srv.AddTool(mcp.NewTool("list_chats",
		mcp.WithDescription("List a user's chats, most recently saved first. Returns [] for an empty user id or when the store is unavailable."),
		mcp.WithString("user_id", mcp.Description("Owner of the chats")),
	), s.listChats)
	s.srv.AddTool(mcp.NewTool("get_chat",
		mcp.WithDescription("Fetch a chat by id. Returns null when it does not exist."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chat id")),
		mcp.WithString("user_id", mcp.Description("Caller, defaults to anonymous")),
	), s.getChat)
	s.srv.AddTool(mcp.NewTool("get_shared_chat",
		mcp.WithDescription("Fetch a shared chat by id. Returns null when it does not exist or is not shared."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chat id")),
	), s.getSharedChat)
	s.srv.AddTool(mcp.NewTool("save_chat",
		mcp.WithDescription("Create or overwrite a chat and move it to the top of its owner's list."),
		mcp.WithString("chat", mcp.Required(), mcp.Description("Chat as a flat JSON object; unknown fields are kept, non-string values are stored as their JSON text, an id is generated when missing")),
		mcp.WithString("user_id", mcp.Description("Caller, defaults to anonymous")),
	), s.saveChat)
	s.srv.AddTool(mcp.NewTool("clear_chats",
		mcp.WithDescription("Delete every chat of a user."),
		mcp.WithString("user_id", mcp.Description("Owner of the chats, defaults to anonymous")),
	), s.clearChats)
	s.srv.AddTool(mcp.NewTool("share_chat",
		mcp.WithDescription("Publish a chat under /share/<id>. Returns null unless the caller owns the chat."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chat id")),
		mcp.WithString("user_id", mcp.Description("Caller, defaults to anonymous")),
	), s.shareChat)
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.srv
}

// ServeStdio serves the tools over stdin/stdout until the input is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.srv)
}

func (s *Server) listChats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListChats(ctx, req.GetString("user_id", "")))
}

func (s *Server) getChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return chatResult(s.svc.GetChat(ctx, id, req.GetString("user_id", "")))
}

func (s *Server) getSharedChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return chatResult(s.svc.GetSharedChat(ctx, id))
}

func (s *Server) saveChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("chat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c := &chat.Chat{}
	if err := json.UnmarshalFromString(raw, c); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid chat: %v", err)), nil
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := validation.Validate(c.ID, validation.Length(1, maxIDLength)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid chat id: %v", err)), nil
	}
	if err := s.svc.SaveChat(ctx, c, req.GetString("user_id", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(saveResult{ID: c.ID})
}

func (s *Server) clearChats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	err := s.svc.ClearChats(ctx, req.GetString("user_id", ""))
	switch {
	case err == nil:
		return jsonResult(clearResult{Cleared: true})
	case errors.Is(err, chatstore.ErrNoChatsToClear):
		return jsonResult(clearResult{Error: noChatsMessage})
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

func (s *Server) shareChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return chatResult(s.svc.ShareChat(ctx, id, req.GetString("user_id", "")))
}

func requireID(req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return "", err
	}
	if err := validation.Validate(id, validation.Required, validation.Length(1, maxIDLength)); err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	return id, nil
}

// chatResult maps the lookup errors to a null result and keeps store failures
// as tool errors.
func chatResult(c *chat.Chat, err error) (*mcp.CallToolResult, error) {
	switch {
	case err == nil:
		return jsonResult(c)
	case errors.Is(err, chatstore.ErrNotFound), errors.Is(err, chatstore.ErrUnauthorized):
		return mcp.NewToolResultText("null"), nil
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	s, err := json.MarshalToString(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(s), nil
}
