// Package api exposes the publishing engine over HTTP.
package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
)

func Register(app *fiber.App, auth *middleware.AuthMiddleware, post *handlers.PostHandler, jobs *handlers.JobHandler) {
	api := app.Group("/api")
	api.Use(auth.AuthMiddleware())

	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Put("/posts/:id/schedule", post.UpdateSchedule)
	api.Post("/posts/:id/publish", post.Publish)
	api.Post("/posts/:id/retry", post.RetryFailed)
	api.Get("/posts/:id/records", post.ListRecords)
	api.Get("/posts/:id/analytics/:platform", post.Analytics)

	api.Get("/jobs/:id", jobs.GetStatus)
	api.Post("/jobs/:id/retry", jobs.Retry)
}
