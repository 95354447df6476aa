package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Info describes the running server.
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type InfoHandler struct {
	info Info
}

func NewInfoHandler(info Info) *InfoHandler {
	return &InfoHandler{info: info}
}

// Get returns the server name, version and description.
//
// @Summary      Server information
// @Tags         meta
// @Produce      json
// @Success      200  {object}  Info
// @Router       /info [get]
func (h *InfoHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.info)
}
