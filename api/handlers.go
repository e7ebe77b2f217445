package api

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/engram/pkg/memory"
)

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleHealth is the liveness check.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleProfileGet returns the user's profile, creating the bucket if needed.
// The profile is the top-level response body; clients read memoryVersion and
// text directly off the response.
func (s *Server) handleProfileGet(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	profile, err := s.service.Profile(c.Context(), stringField(body, "uid"))
	if err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(profile)
}

// handleProfileSet applies a partial profile update.
func (s *Server) handleProfileSet(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	update := memory.ProfileUpdate{}
	if v := stringFieldPtr(body, "memoryVersion"); v != nil {
		update.MemoryVersion = v
	}
	if v := stringFieldPtr(body, "text"); v != nil {
		update.Text = v
	}

	if err := s.service.SetProfile(c.Context(), stringField(body, "uid"), update); err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(okResponse{OK: true})
}

// handleNodesList returns every node in the bucket, vectors stripped.
func (s *Server) handleNodesList(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	nodes, err := s.service.ListNodes(c.Context(), stringField(body, "uid"))
	if err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"nodes": nodes})
}

// handleNodeUpsert inserts or overwrites a node and returns the stored copy.
func (s *Server) handleNodeUpsert(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	// A missing node is an empty node; only a present non-object is rejected.
	var fields map[string]json.RawMessage
	if rawNode, ok := body["node"]; ok {
		if err := json.Unmarshal(rawNode, &fields); err != nil {
			return badRequest(c, "node must be an object")
		}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	node, err := s.service.UpsertNode(c.Context(), stringField(body, "uid"), memory.NodePatchFromRaw(fields))
	if err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"node": node})
}

// handleNodeDelete removes a node. Absent nodes delete cleanly.
func (s *Server) handleNodeDelete(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	if err := s.service.DeleteNode(c.Context(), stringField(body, "uid"), stringField(body, "nodeId")); err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(okResponse{OK: true})
}

// handleReset clears the bucket's nodes and profile text.
func (s *Server) handleReset(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	if err := s.service.Reset(c.Context(), stringField(body, "uid")); err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(okResponse{OK: true})
}

// handleQuery ranks the bucket's nodes against the query text.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	body, err := parseBody(c)
	if err != nil {
		return badRequest(c, "Invalid JSON body")
	}

	matches, err := s.service.Query(
		c.Context(),
		stringField(body, "uid"),
		stringField(body, "query"),
		intField(body, "topK"),
	)
	if err != nil {
		return s.serviceError(c, err)
	}

	return c.JSON(fiber.Map{"matches": matches})
}

// serviceError maps domain errors to status codes. Validation errors are the
// caller's fault; everything else is a 500 with the detail kept in the logs.
func (s *Server) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, memory.ErrUIDRequired):
		return badRequest(c, "uid required")
	case errors.Is(err, memory.ErrNodeIDRequired):
		return badRequest(c, "nodeId required")
	default:
		return err
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: message})
}

// parseBody decodes the request body as a JSON object. An empty body is an
// empty object; anything else malformed is an error.
func parseBody(c *fiber.Ctx) (map[string]json.RawMessage, error) {
	raw := c.Body()
	if len(raw) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]json.RawMessage{}
	}

	return body, nil
}

// stringField reads a string field, returning "" when the field is missing
// or not a string.
func stringField(body map[string]json.RawMessage, key string) string {
	v, ok := body[key]
	if !ok {
		return ""
	}

	var out string
	_ = json.Unmarshal(v, &out)
	return out
}

// stringFieldPtr distinguishes an absent field (nil) from a present one.
// Present fields of the wrong type are treated as absent.
func stringFieldPtr(body map[string]json.RawMessage, key string) *string {
	v, ok := body[key]
	if !ok {
		return nil
	}

	var out string
	if err := json.Unmarshal(v, &out); err != nil {
		return nil
	}
	return &out
}

// intField reads an integer field, tolerating JSON numbers and numeric
// strings. Anything else reads as zero.
func intField(body map[string]json.RawMessage, key string) int {
	v, ok := body[key]
	if !ok {
		return 0
	}

	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return int(n)
	}

	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		if parsed, err := strconv.Atoi(str); err == nil {
			return parsed
		}
	}

	return 0
}
