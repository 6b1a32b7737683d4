package router

import (
	"github.com/go-chi/chi/v5"

	apictrl "github.com/dropDatabas3/aerogate/internal/http/controllers/api"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
)

// APIRouterDeps dependencias de las rutas del gateway de documentos.
type APIRouterDeps struct {
	Config    *apictrl.ConfigController
	Translate *apictrl.TranslateController
	Search    *apictrl.SearchController
	Normalize *apictrl.NormalizeController
	Document  *apictrl.DocumentController

	Verifier   mw.TokenVerifier
	Gatekeeper mw.GatekeeperOptions
}

// RegisterAPIRoutes registra todo /api detrás del gatekeeper. Quién es
// el caller lo decide el middleware (bearer, headers de proxy o
// anónimo según configuración); los handlers solo leen la identidad
// del contexto.
func RegisterAPIRoutes(r chi.Router, deps APIRouterDeps) {
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.RequireAuth(deps.Verifier, deps.Gatekeeper))

		r.Get("/config", deps.Config.FrontendConfig)
		r.Post("/translate", deps.Translate.Translate)
		r.Post("/translate_batch", deps.Translate.TranslateBatch)
		r.Post("/rag", deps.Search.Search)
		r.Post("/normalize", deps.Normalize.Normalize)
		r.Post("/upload-pdf", deps.Document.UploadPDF)
		r.Get("/my-files", deps.Document.MyFiles)
		r.Delete("/cleanup-old-files", deps.Document.CleanupOldFiles)
	})
}
