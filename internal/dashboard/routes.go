package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultLogLines = 50

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, src *source) {
	router.GET("/", handleIndex(src))
	router.GET("/healthz", handleHealth())

	api := router.Group("/api")
	api.GET("/status", handleStatus(src))
	api.GET("/messages", handleMessages(src))
	api.GET("/outputs", handleOutputs(src))
	api.GET("/logs/:role", handleLogs(src))
	api.GET("/events", handleSSE(src, defaultSSEPoll))
}

func handleIndex(src *source) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, _ := src.Status()
		msgs, _ := src.Recent(20)
		outputs, _ := src.Outputs()
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Status":   status,
			"Messages": msgs,
			"Outputs":  outputs,
		})
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleStatus(src *source) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := src.Status()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func handleMessages(src *source) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := src.Messages(c.Query("to"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if msgs == nil {
			c.JSON(http.StatusOK, []any{})
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func handleOutputs(src *source) gin.HandlerFunc {
	return func(c *gin.Context) {
		arts, err := src.Outputs()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if arts == nil {
			c.JSON(http.StatusOK, []any{})
			return
		}
		c.JSON(http.StatusOK, arts)
	}
}

func handleLogs(src *source) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := defaultLogLines
		if raw := c.Query("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a non-negative integer"})
				return
			}
			n = v
		}
		entries, err := src.Logs(c.Param("role"), n)
		if errors.Is(err, errUnknownRole) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown role " + c.Param("role")})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
