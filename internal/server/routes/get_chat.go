package routes

import (
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"

	"github.com/labstack/echo/v4"
)

func ChatHealthHandler(c echo.Context) error {
	type chatHealthResponse struct {
		Status      string `json:"status"`
		Service     string `json:"service"`
		LLMProvider string `json:"llm_provider"`
		HasLLM      bool   `json:"has_llm"`
	}

	rag := c.(*middleware.AppContext).App.RAG
	provider := rag.Provider()
	if !rag.HasLLM() {
		provider = "none (fallback mode)"
	}

	return c.JSON(http.StatusOK, chatHealthResponse{
		Status:      "ok",
		Service:     "RAG Chat",
		LLMProvider: provider,
		HasLLM:      rag.HasLLM(),
	})
}

type exampleCategory struct {
	Category  string   `json:"category"`
	Questions []string `json:"questions"`
}

var exampleQuestions = []exampleCategory{
	{
		Category: "Health Effects",
		Questions: []string{
			"What are the effects of microgravity on bone density?",
			"How does spaceflight affect the cardiovascular system?",
			"What happens to the immune system in space?",
		},
	},
	{
		Category: "Countermeasures",
		Questions: []string{
			"What countermeasures exist for muscle atrophy?",
			"How can we prevent bone loss in astronauts?",
			"What exercises are effective in microgravity?",
		},
	},
	{
		Category: "Radiation",
		Questions: []string{
			"How does cosmic radiation affect human cells?",
			"What are the long-term effects of space radiation?",
			"How can we protect astronauts from radiation?",
		},
	},
	{
		Category: "Research Insights",
		Questions: []string{
			"What genes are affected by spaceflight?",
			"What biological pathways change in microgravity?",
			"What research has been done on the ISS?",
		},
	},
}

func ChatExamplesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]exampleCategory{"examples": exampleQuestions})
}

func GetConversationHandler(c echo.Context) error {
	conversations := c.(*middleware.AppContext).App.Conversations
	conv, err := conversations.GetConversation(c.Param("id"))
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}
