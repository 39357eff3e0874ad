package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"switchfleet/auth"
	"switchfleet/internal/web/models"
)

func RegisterAuthRoutes(router *gin.Engine, authModule *auth.Module) {
	r := router.Group("/auth")
	{
		r.POST("/signup", func(c *gin.Context) {
			var req models.SignupRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, user, err := authModule.Signup(c, req.Username, req.Email, req.Password)
			if err != nil {
				if errors.Is(err, auth.ErrUserExists) {
					c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
		})

		r.POST("/login", func(c *gin.Context) {
			var req models.LoginRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, user, err := authModule.Login(c, req.Email, req.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
		})
	}
}
