// Package toolserver exposes a build session to MCP clients over stdio.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0-chirag-s/sitecrafter/internal/session"
	"github.com/0-chirag-s/sitecrafter/internal/source"
	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

// Version is reported to MCP clients during initialize.
var Version = "dev"

// Server wraps an MCP server bound to one session.
type Server struct {
	sess    *session.Session
	decoder *source.Decoder
	mcp     *server.MCPServer
}

// New registers the session tools. decoder parses apply_actions payloads;
// nil uses source.DefaultSelector.
func New(sess *session.Session, decoder *source.Decoder) (*Server, error) {
	if decoder == nil {
		d, err := source.NewDecoder(source.DefaultSelector)
		if err != nil {
			return nil, err
		}
		decoder = d
	}
	s := &Server{
		sess:    sess,
		decoder: decoder,
		mcp:     server.NewMCPServer("sitecrafter", Version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("List the children of a folder in the project tree. Empty path lists the top level."),
		mcp.WithString("path", mcp.Description("Folder path, e.g. src/components")),
	), s.handleListTree)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the content of a file in the project tree."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
	), s.handleReadFile)

	s.mcp.AddTool(mcp.NewTool("edit_file",
		mcp.WithDescription("Replace the content of an existing file and remount the project."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New file content")),
	), s.handleEditFile)

	s.mcp.AddTool(mcp.NewTool("apply_actions",
		mcp.WithDescription("Apply a batch of build actions given as a JSON document."),
		mcp.WithString("actions", mcp.Required(), mcp.Description("JSON document holding the action batch")),
	), s.handleApplyActions)

	s.mcp.AddTool(mcp.NewTool("mount_descriptor",
		mcp.WithDescription("Return the current mount descriptor as JSON."),
	), s.handleMountDescriptor)

	return s, nil
}

// MCP returns the underlying server, mainly for in-process clients.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleListTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := strings.Trim(req.GetString("path", ""), "/")
	var children []tree.Node
	if p == "" {
		children = s.sess.Tree().Roots()
	} else {
		var err error
		if children, err = s.sess.Tree().List(p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	var b strings.Builder
	for _, c := range children {
		if c.IsDir() {
			fmt.Fprintf(&b, "%s/\n", c.Name)
		} else {
			fmt.Fprintf(&b, "%s\t%d\n", c.Name, len(c.Content))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleReadFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.sess.Tree().Get(strings.Trim(p, "/"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", p, tree.ErrNotAFile)), nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func (s *Server) handleEditFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.Edit(ctx, strings.Trim(p, "/"), content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("edited %s (%d bytes)", p, len(content))), nil
}

func (s *Server) handleApplyActions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("actions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	batch, err := s.decoder.Decode([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.sess.Receive(ctx, batch)
	summary := fmt.Sprintf("received %d actions: %d created, %d updated, %d rejected",
		len(batch), res.Created, res.Updated, cardinality(res.Rejected))
	if err != nil {
		if errors.Is(err, tree.ErrKindConflict) {
			return mcp.NewToolResultError(summary + "\n" + err.Error()), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (s *Server) handleMountDescriptor(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(s.sess.Descriptor(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// cardinality tolerates the zero Result returned when a batch is refused
// before reconciliation.
func cardinality(b *roaring.Bitmap) uint64 {
	if b == nil {
		return 0
	}
	return b.GetCardinality()
}
