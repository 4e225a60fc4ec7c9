// Package mcpserver exposes the dream world model as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dreamland/internal/consolidate"
	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/worldservice"
)

// Server wraps the MCP server with the world-model tools.
type Server struct {
	mcp *server.MCPServer
	svc *worldservice.Service
}

// RecordDreamArgs are the arguments of record_dream.
type RecordDreamArgs struct {
	Content  string `json:"content" jsonschema:"required,description=Free text of the dream"`
	Date     string `json:"date,omitempty" jsonschema:"description=Date of the dream as YYYY-MM-DD (default today)"`
	Cycle    int    `json:"cycle,omitempty" jsonschema:"description=Sleep cycle within the night starting at 1"`
	Language string `json:"language,omitempty" jsonschema:"description=Language code of the text (default en)"`
}

// LayerArgs optionally restrict a listing to one layer.
type LayerArgs struct {
	Layer string `json:"layer,omitempty" jsonschema:"enum=LOWER,enum=PRIMARY,enum=UPPER,description=Only list locations on this layer"`
}

// IDArgs address one record.
type IDArgs struct {
	ID int64 `json:"id" jsonschema:"required,description=Location id"`
}

// EntityFilterArgs optionally restrict entities to one owning location.
type EntityFilterArgs struct {
	LocationID *int64 `json:"location_id,omitempty" jsonschema:"description=Only list entities owned by this location"`
}

// MergeArgs are the arguments of merge_locations.
type MergeArgs struct {
	SourceIDs  []int64 `json:"source_ids" jsonschema:"required,description=Ids of the locations to merge (at least two)"`
	TargetName string  `json:"target_name" jsonschema:"required,description=Name of the merged location"`
	UserNote   string  `json:"user_note,omitempty" jsonschema:"description=Why the locations are the same place"`
}

// New creates an MCP server with every world tool registered.
func New(svc *worldservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Dreamland",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("record_dream",
		mcp.WithDescription("Record one dream. Its places, beings and movements are "+
			"extracted and merged into the world map in the background."),
		mcp.WithInputSchema[RecordDreamArgs](),
	), s.recordDream)

	s.mcp.AddTool(mcp.NewTool("list_locations",
		mcp.WithDescription("List the locations of the dream world, optionally on one layer."),
		mcp.WithInputSchema[LayerArgs](),
	), s.listLocations)

	s.mcp.AddTool(mcp.NewTool("get_location",
		mcp.WithDescription("Get one location with its history of edits."),
		mcp.WithInputSchema[IDArgs](),
	), s.getLocation)

	s.mcp.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List people, beings, animals, objects and concepts seen in dreams."),
		mcp.WithInputSchema[EntityFilterArgs](),
	), s.listEntities)

	s.mcp.AddTool(mcp.NewTool("location_transits",
		mcp.WithDescription("List the movements into and out of a location."),
		mcp.WithInputSchema[IDArgs](),
	), s.locationTransits)

	s.mcp.AddTool(mcp.NewTool("merge_locations",
		mcp.WithDescription("Merge locations that are the same place into one. "+
			"Read the world guide first via get_world_guide."),
		mcp.WithInputSchema[MergeArgs](),
	), s.mergeLocations)

	s.mcp.AddTool(mcp.NewTool("world_stats",
		mcp.WithDescription("Counts of dreams, locations, entities and transits."),
	), s.worldStats)

	s.mcp.AddTool(mcp.NewTool("export_world",
		mcp.WithDescription("Export the whole world model as JSON."),
	), s.exportWorld)

	s.mcp.AddTool(mcp.NewTool("get_world_guide",
		mcp.WithDescription("Explains layers, coordinates, archetypes and entity types. "+
			"Call this before recording or curating."),
	), s.getWorldGuide)

	s.mcp.AddResource(
		mcp.NewResource(WorldGuideURI, "World Guide",
			mcp.WithResourceDescription("How the dream world map is structured."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readWorldGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func bind(req mcp.CallToolRequest, target any) *mcp.CallToolResult {
	if err := req.BindArguments(target); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) recordDream(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args RecordDreamArgs
	if res := bind(req, &args); res != nil {
		return res, nil
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if strings.TrimSpace(args.Date) != "" {
		d, err := models.ParseDate(args.Date)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		date = d
	}
	d, err := s.svc.CreateDream(ctx, worldservice.DreamInput{
		Date:     date,
		Cycle:    args.Cycle,
		Content:  args.Content,
		Language: args.Language,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) listLocations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args LayerArgs
	if res := bind(req, &args); res != nil {
		return res, nil
	}
	var layer *models.Layer
	if args.Layer != "" {
		l, err := models.ParseLayer(args.Layer)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		layer = &l
	}
	locs, err := s.svc.ListLocations(ctx, layer)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(locs)
}

func (s *Server) getLocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args IDArgs
	if res := bind(req, &args); res != nil {
		return res, nil
	}
	loc, err := s.svc.GetLocation(ctx, args.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	history, err := s.svc.LocationHistory(ctx, args.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"location": loc, "history": history})
}

func (s *Server) listEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args EntityFilterArgs
	if res := bind(req, &args); res != nil {
		return res, nil
	}
	ents, err := s.svc.ListEntities(ctx, args.LocationID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ents)
}

func (s *Server) locationTransits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args IDArgs
	if res := bind(req, &args); res != nil {
		return res, nil
	}
	ts, err := s.svc.LocationTransits(ctx, args.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ts)
}

func (s *Server) mergeLocations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args MergeArgs
	if res := bind(req, &args); res != nil {
		return res, nil
	}
	merged, err := s.svc.MergeLocations(ctx, consolidate.MergeRequest{
		SourceIDs:  args.SourceIDs,
		TargetName: args.TargetName,
		UserNote:   args.UserNote,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(merged)
}

func (s *Server) worldStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) exportWorld(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Export(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) getWorldGuide(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WorldGuide()), nil
}

func (s *Server) readWorldGuideResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      WorldGuideURI,
			MIMEType: "text/markdown",
			Text:     WorldGuide(),
		},
	}, nil
}
