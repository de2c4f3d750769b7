// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scrivo-dev/scrivo/internal/command"
	"github.com/scrivo-dev/scrivo/internal/ingest"
	"github.com/scrivo-dev/scrivo/internal/search"
	"github.com/scrivo-dev/scrivo/internal/store"
	"github.com/scrivo-dev/scrivo/pkg/errors"
)

// Services bundles the application services the HTTP routes dispatch to.
type Services struct {
	Ingest   *ingest.Service
	Search   *search.Engine
	Commands *command.Queue
	Chunks   store.ChunkStore
}

// UpsertRequest carries documents to ingest.
type UpsertRequest struct {
	Body struct {
		Documents []store.Document `json:"documents" minItems:"1" doc:"Documents to chunk, embed, and store"`
	}
}

// UpsertResponse reports the stored document ids alongside any per-document
// failures.
type UpsertResponse struct {
	Body struct {
		IDs    []string `json:"ids" doc:"IDs of documents stored, in request order"`
		Errors []string `json:"errors,omitempty" doc:"Per-document failure messages"`
	}
}

// QueryRequest carries a batch of similarity queries.
type QueryRequest struct {
	Body struct {
		Queries []store.Query `json:"queries" minItems:"1" doc:"Queries to run"`
	}
}

// QueryResponse returns one result entry per query, in request order.
type QueryResponse struct {
	Body struct {
		Results []store.QueryResult `json:"results"`
	}
}

// CommandRequest submits a note command for execution.
type CommandRequest struct {
	Body struct {
		Type    store.CommandType    `json:"type" enum:"CREATE_NOTE,MODIFY_NOTE,DELETE_NOTE" doc:"Command type"`
		Content store.CommandContent `json:"content" doc:"Command payload"`
	}
}

// CommandResponse reports the command id and, when it finished in ERROR or
// ABANDONED, the failure messages.
type CommandResponse struct {
	Body struct {
		ID     string   `json:"id" doc:"Command id"`
		Errors []string `json:"errors,omitempty" doc:"Failure messages when the command did not complete"`
	}
}

// CommandStatusRequest fetches a command record by id.
type CommandStatusRequest struct {
	ID string `path:"id" doc:"Command id"`
}

// CommandStatusResponse returns the full command record.
type CommandStatusResponse struct {
	Body store.Command
}

// DeleteRequest removes chunks by document ids, by metadata filter, or all at
// once. Exactly one selector should be provided; delete_all wins over the
// others.
type DeleteRequest struct {
	Body struct {
		IDs       []string              `json:"ids,omitempty" doc:"Document ids to delete"`
		Filter    *store.MetadataFilter `json:"filter,omitempty" doc:"Metadata filter selecting chunks to delete"`
		DeleteAll bool                  `json:"delete_all,omitempty" doc:"Delete every stored chunk"`
	}
}

// DeleteResponse reports whether the delete ran.
type DeleteResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// RegisterRoutes wires the API operations onto the server.
func (s *Server) RegisterRoutes(svcs *Services) {
	s.services = svcs

	huma.Register(s.api, huma.Operation{
		OperationID: "upsert",
		Method:      http.MethodPost,
		Path:        "/upsert",
		Summary:     "Upsert documents",
		Description: "Chunks, embeds, and stores documents. Re-upserting a document id replaces its prior chunks.",
		Tags:        []string{"documents"},
	}, s.handleUpsert)

	huma.Register(s.api, huma.Operation{
		OperationID: "query",
		Method:      http.MethodPost,
		Path:        "/query",
		Summary:     "Query documents",
		Description: "Runs a batch of similarity queries with optional metadata filters.",
		Tags:        []string{"documents"},
	}, s.handleQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete",
		Method:      http.MethodPost,
		Path:        "/delete",
		Summary:     "Delete documents",
		Tags:        []string{"documents"},
	}, s.handleDelete)

	huma.Register(s.api, huma.Operation{
		OperationID: "submit-command",
		Method:      http.MethodPost,
		Path:        "/commands",
		Summary:     "Submit a note command",
		Description: "Submits a command and waits for it to reach a terminal status before responding.",
		Tags:        []string{"commands"},
	}, s.handleSubmitCommand)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-command",
		Method:      http.MethodGet,
		Path:        "/commands/{id}",
		Summary:     "Get a command record",
		Tags:        []string{"commands"},
	}, s.handleGetCommand)
}

func (s *Server) handleUpsert(ctx context.Context, req *UpsertRequest) (*UpsertResponse, error) {
	results := s.services.Ingest.Upsert(ctx, req.Body.Documents)

	resp := &UpsertResponse{}
	resp.Body.IDs = make([]string, 0, len(results))
	for _, r := range results {
		resp.Body.IDs = append(resp.Body.IDs, r.ID)
		if r.Err != nil {
			resp.Body.Errors = append(resp.Body.Errors, r.Err.Error())
		}
	}
	return resp, nil
}

func (s *Server) handleQuery(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	results := s.services.Search.RunQueries(ctx, req.Body.Queries)

	resp := &QueryResponse{}
	resp.Body.Results = results
	return resp, nil
}

func (s *Server) handleDelete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	switch {
	case req.Body.DeleteAll:
		if err := s.services.Chunks.DeleteAll(ctx); err != nil {
			return nil, humaError(err)
		}
	case req.Body.Filter != nil && !req.Body.Filter.Empty():
		if _, err := s.services.Chunks.DeleteByFilter(ctx, req.Body.Filter); err != nil {
			return nil, humaError(err)
		}
	case len(req.Body.IDs) > 0:
		for _, id := range req.Body.IDs {
			if _, err := s.services.Chunks.DeleteDocument(ctx, id); err != nil {
				return nil, humaError(err)
			}
		}
	default:
		return nil, huma.Error400BadRequest("one of ids, filter, or delete_all is required")
	}

	resp := &DeleteResponse{}
	resp.Body.Success = true
	return resp, nil
}

func (s *Server) handleSubmitCommand(ctx context.Context, req *CommandRequest) (*CommandResponse, error) {
	id, err := s.services.Commands.Submit(ctx, req.Body.Type, req.Body.Content)
	if err != nil {
		return nil, humaError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	cmd, err := s.services.Commands.Wait(waitCtx, id, s.cfg.CommandPollInterval)
	if err != nil {
		// The command keeps its id even when waiting timed out; the reaper
		// will abandon it if no worker finishes it.
		resp := &CommandResponse{}
		resp.Body.ID = id
		resp.Body.Errors = []string{command.AbandonedMessage}
		return resp, nil
	}

	resp := &CommandResponse{}
	resp.Body.ID = cmd.ID
	if cmd.Status != store.CommandStatusCompleted {
		if cmd.Errors != "" {
			resp.Body.Errors = []string{cmd.Errors}
		} else {
			resp.Body.Errors = []string{string(cmd.Status)}
		}
	}
	return resp, nil
}

func (s *Server) handleGetCommand(ctx context.Context, req *CommandStatusRequest) (*CommandStatusResponse, error) {
	cmd, err := s.services.Commands.Status(ctx, req.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &CommandStatusResponse{Body: *cmd}, nil
}

// humaError converts internal errors into huma status errors using the
// error-code to HTTP status mapping.
func humaError(err error) error {
	status := errors.HTTPStatus(err)
	return huma.NewError(status, err.Error())
}
