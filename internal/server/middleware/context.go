package middleware

import (
	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/internal/queue"
	"github.com/NimaFathima/astrobiomers/pkg/evidence"
	"github.com/NimaFathima/astrobiomers/pkg/query/rag"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"

	"github.com/NimaFathima/astrobiomers/pkg/ai"
)

type AppUser struct {
	Subject     string
	Role        string
	Permissions []string
}

// App holds the services every handler can reach. Corpus, Jobs, Queue, S3
// and Key are nil when the matching backend is not configured; handlers
// answer 503 for features that need them.
type App struct {
	Config        config.Config
	Graph         store.GraphStorage
	Corpus        store.PaperStorage
	Jobs          store.JobStorage
	Evidence      *evidence.Service
	RAG           *rag.Orchestrator
	Conversations *rag.Conversations
	AiClient      ai.GraphAIClient
	Queue         queue.Publisher
	S3            *s3.Client
	Key           keyfunc.Keyfunc
	MasterAPIKey  string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
