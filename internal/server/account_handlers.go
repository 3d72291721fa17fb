package server

import (
	"slices"

	"credledger/internal/featureflags"
	"credledger/internal/ledger"
	"credledger/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetAccount handles GET /api/accounts/:account
func (s *Server) GetAccount(c *fiber.Ctx) error {
	view := s.accountService.GetAccount(c.UserContext(), c.Params("account"), middleware.AccountFrom(c))
	return c.JSON(view)
}

// GetMe handles GET /api/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	account := middleware.AccountFrom(c)
	return c.JSON(s.accountService.GetAccount(c.UserContext(), account, account))
}

// ActivateAccount handles POST /api/me/activate
func (s *Server) ActivateAccount(c *fiber.Ctx) error {
	if err := s.accountService.Activate(c.UserContext(), middleware.AccountFrom(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeatureFlags handles GET /api/me/feature-flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(middleware.AccountFrom(c)))
}

// ListFollowing handles GET /api/accounts/:account/following
func (s *Server) ListFollowing(c *fiber.Ctx) error {
	following := slices.Collect(s.ledger.ListFollowing(c.Params("account")))
	if following == nil {
		following = []string{}
	}
	return c.JSON(fiber.Map{"following": following, "count": len(following)})
}

// IsFollowing handles GET /api/accounts/:account/following/:followed
func (s *Server) IsFollowing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"following": s.ledger.IsFollowing(c.Params("account"), c.Params("followed")),
	})
}

// GetFollowedPosts handles GET /api/accounts/:account/feed
func (s *Server) GetFollowedPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageLimit)
	posts, total := s.ledger.GetFollowedPosts(c.Params("account"), page.Offset, page.Limit)
	return c.JSON(PageResponse{Posts: posts, Total: total, Offset: page.Offset, Limit: page.Limit})
}

const defaultSuggestionLimit = 5

// SuggestAccounts handles GET /api/accounts/:account/suggestions
func (s *Server) SuggestAccounts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultSuggestionLimit)
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	limit = min(limit, ledger.SuggestionWindow)

	suggestions := s.accountService.SuggestAccounts(c.UserContext(), c.Params("account"), limit)
	return c.JSON(fiber.Map{"suggestions": suggestions, "count": len(suggestions)})
}

// GetFeed handles GET /api/feed: the viewer's followed feed when the
// followed_feed flag is on for them, the global newest-first feed otherwise.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageLimit)
	viewer := middleware.AccountFrom(c)

	if viewer != "" && s.featureFlags.Enabled(featureflags.FollowedFeed, viewer) {
		posts, total := s.ledger.GetFollowedPosts(viewer, page.Offset, page.Limit)
		c.Set("X-Feed-Source", "following")
		return c.JSON(PageResponse{Posts: posts, Total: total, Offset: page.Offset, Limit: page.Limit})
	}

	posts, total := s.ledger.GetPosts(page.Offset, page.Limit)
	c.Set("X-Feed-Source", "latest")
	return c.JSON(PageResponse{Posts: posts, Total: total, Offset: page.Offset, Limit: page.Limit})
}

// FollowUser handles PUT /api/accounts/:account/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	if err := s.ledger.FollowUser(c.UserContext(), middleware.AccountFrom(c), c.Params("account")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnfollowUser handles DELETE /api/accounts/:account/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	if err := s.ledger.UnfollowUser(c.UserContext(), middleware.AccountFrom(c), c.Params("account")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
