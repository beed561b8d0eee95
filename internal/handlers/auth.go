package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/openbiolabs/noderepo/internal/auth"
	"github.com/openbiolabs/noderepo/pkg/response"
)

type AuthHandler struct {
	service *iauth.Service
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required"`
}

func NewAuthHandler(service *iauth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	token, err := h.service.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": token})
}
