package routes

import (
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/query"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

type askBody struct {
	Question       string `json:"question" validate:"required,min=5,max=500"`
	MaxPapers      *int   `json:"max_papers" validate:"omitempty,min=1,max=50"`
	IncludeContext *bool  `json:"include_context"`
}

type askResponse struct {
	common.RAGResponse
	Trace *query.QueryTraceSnapshot `json:"trace,omitempty"`
}

// askOptions turns a request body into RAG options. A "trace=true" query
// parameter attaches a trace of the retrieval.
func askOptions(c echo.Context, data *askBody) ([]query.AskOption, *query.QueryTrace) {
	maxPapers := c.(*middleware.AppContext).App.Config.RAG.MaxPapers
	if data.MaxPapers != nil {
		maxPapers = *data.MaxPapers
	}
	includeContext := true
	if data.IncludeContext != nil {
		includeContext = *data.IncludeContext
	}

	opts := []query.AskOption{
		query.WithMaxPapers(maxPapers),
		query.WithSnippets(includeContext),
	}

	var trace *query.QueryTrace
	if c.QueryParam("trace") == "true" {
		trace = query.NewQueryTrace()
		opts = append(opts, query.WithTracer(trace))
	}
	return opts, trace
}

func newAskResponse(res common.RAGResponse, trace *query.QueryTrace) askResponse {
	out := askResponse{RAGResponse: res}
	if trace != nil {
		snapshot := trace.Snapshot()
		out.Trace = &snapshot
	}
	return out
}

// AskQuestionHandler answers a question from the knowledge graph. LLM
// problems degrade the answer but never fail the request.
func AskQuestionHandler(c echo.Context) error {
	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}

	opts, trace := askOptions(c, data)
	rag := c.(*middleware.AppContext).App.RAG
	res := rag.AnswerQuestion(c.Request().Context(), data.Question, opts...)

	return c.JSON(http.StatusOK, newAskResponse(res, trace))
}

func StartConversationHandler(c echo.Context) error {
	conversations := c.(*middleware.AppContext).App.Conversations
	conv := conversations.StartConversation()
	return c.JSON(http.StatusCreated, conv)
}

func AskInConversationHandler(c echo.Context) error {
	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}

	opts, trace := askOptions(c, data)
	conversations := c.(*middleware.AppContext).App.Conversations
	res, err := conversations.AskInConversation(c.Request().Context(), c.Param("id"), data.Question, opts...)
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, newAskResponse(res, trace))
}
