package server

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/repscan/internal/server/docs"
)

// @title repscan progress API
// @version 0.1
// @description Live progress and records of a repscan run.
// @BasePath /

// mountSwagger serves the API description at /swagger/doc.json and the UI
// under /swagger/.
func mountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.InstanceName(docs.SwaggerInfo.InstanceName()),
	))
}
