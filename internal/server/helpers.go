package server

import (
	"encoding/json"
	"strconv"
	"strings"

	"credledger/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit   = 20
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// PageResponse is one page of a post listing.
type PageResponse struct {
	Posts  []models.Post `json:"posts"`
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
}

// parsePostID reads the :id route parameter. Post ids start at 1.
func parsePostID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewInvalidInputError("Invalid post ID")
	}
	return id, nil
}

// statusFor maps an AppError code onto an HTTP status.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeInvalidInput, models.CodeSelfFollow:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeInsufficientReputation:
		return fiber.StatusForbidden
	case models.CodePostNotFound, models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeAlreadyVoted:
		return fiber.StatusConflict
	case models.CodeContentUnavailable:
		return fiber.StatusBadGateway
	case models.CodeOracleUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusFor(err), err)
}

// tagList accepts tags either as a JSON array or as one comma separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = strings.Split(raw, ",")
	return nil
}
