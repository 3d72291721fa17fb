package server

import (
	"slices"

	"credledger/internal/middleware"
	"credledger/internal/models"
	"credledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageLimit)
	posts, total := s.ledger.GetPosts(page.Offset, page.Limit)
	return c.JSON(PageResponse{Posts: posts, Total: total, Offset: page.Offset, Limit: page.Limit})
}

// GetTrendingPosts handles GET /api/posts/trending
func (s *Server) GetTrendingPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageLimit)
	posts := s.ledger.GetTrendingPosts(page.Offset, page.Limit)
	return c.JSON(PageResponse{Posts: posts, Total: s.ledger.PostCount(), Offset: page.Offset, Limit: page.Limit})
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.ledger.GetPost(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetPostContent handles GET /api/posts/:id/content
func (s *Server) GetPostContent(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return respondError(c, err)
	}
	post, doc, err := s.publishService.GetPostContent(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"post": post, "content": doc})
}

// GetVote handles GET /api/posts/:id/votes/:voter
func (s *Server) GetVote(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return respondError(c, err)
	}
	voter := c.Params("voter")
	vote, ok := s.ledger.GetVote(id, voter)
	if !ok {
		return respondError(c, models.NewNotFoundError("Vote by "+voter+" on post", id))
	}
	return c.JSON(vote)
}

// GetPostsByAuthor handles GET /api/accounts/:account/posts
func (s *Server) GetPostsByAuthor(c *fiber.Ctx) error {
	posts := slices.Collect(s.ledger.GetPostsByAuthor(c.Params("account")))
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(fiber.Map{"posts": posts, "total": len(posts)})
}

// CreatePost handles POST /api/posts for content already in the store.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title      string `json:"title"`
		ContentRef string `json:"content_ref"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewInvalidInputError("Invalid request body"))
	}

	id, err := s.ledger.CreatePost(c.UserContext(), middleware.AccountFrom(c), req.Title, req.ContentRef)
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.ledger.GetPost(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// Publish handles POST /api/publish: stores the document, then records the post.
func (s *Server) Publish(c *fiber.Ctx) error {
	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Tags        tagList `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewInvalidInputError("Invalid request body"))
	}

	res, err := s.publishService.Publish(c.UserContext(), middleware.AccountFrom(c), service.PublishInput{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// VotePost handles POST /api/posts/:id/vote
func (s *Server) VotePost(c *fiber.Ctx) error {
	id, err := parsePostID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		IsUpvote  *bool            `json:"is_upvote"`
		Direction models.Direction `json:"direction"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewInvalidInputError("Invalid request body"))
	}

	var up bool
	switch {
	case req.IsUpvote != nil:
		up = *req.IsUpvote
	case req.Direction == models.DirectionUp || req.Direction == models.DirectionDown:
		up = req.Direction == models.DirectionUp
	default:
		return respondError(c, models.NewInvalidInputError("is_upvote or direction (up|down) is required"))
	}

	if err := s.ledger.VotePost(c.UserContext(), middleware.AccountFrom(c), id, up); err != nil {
		return respondError(c, err)
	}
	post, err := s.ledger.GetPost(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}
