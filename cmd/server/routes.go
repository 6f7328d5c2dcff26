// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file registers the HTTP API: the video library, its prompts,
// generation job control, and maintenance operations.
package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promptpilot/video-prompt-studio/internal/cloud"
	"github.com/promptpilot/video-prompt-studio/internal/core/generator"
	"github.com/promptpilot/video-prompt-studio/internal/core/model"
	"github.com/promptpilot/video-prompt-studio/internal/core/services"
)

// addVideoRequest queues one local file. The server stats the file itself
// so size and name are always consistent with the filesystem.
type addVideoRequest struct {
	Filepath string `json:"filepath" binding:"required"`
}

type generationRequest struct {
	PromptsPerVideo int    `json:"prompts_per_video"`
	ComplexityLevel int    `json:"complexity_level"`
	AspectRatio     string `json:"aspect_ratio"`
	VariationLevel  int    `json:"variation_level"`
	BatchCap        int    `json:"batch_cap"`
}

type cleanupRequest struct {
	Days int `json:"days" binding:"required"`
}

// VideoRouter registers the video library routes.
func VideoRouter(r *gin.RouterGroup) {
	videos := r.Group("/videos")
	{
		videos.GET("", func(c *gin.Context) {
			out, err := state.videoService.ListVideos()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, out)
		})

		videos.POST("", func(c *gin.Context) {
			var req addVideoRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			info, err := os.Stat(req.Filepath)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file not found: " + req.Filepath})
				return
			}
			video, err := state.videoService.AddVideo(filepath.Base(req.Filepath), req.Filepath, info.Size())
			if errors.Is(err, services.ErrDuplicateVideo) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, video)
		})

		videos.DELETE("/:id", func(c *gin.Context) {
			id, err := parseID(c)
			if err != nil {
				return
			}
			if err := state.videoService.DeleteVideo(id); err != nil {
				statusForServiceError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})

		videos.GET("/:id/prompts", func(c *gin.Context) {
			id, err := parseID(c)
			if err != nil {
				return
			}
			if _, err := state.videoService.VideoByID(id); err != nil {
				statusForServiceError(c, err)
				return
			}
			out, err := state.videoService.PromptsByVideo(id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, out)
		})

		videos.POST("/reset", func(c *gin.Context) {
			reset, err := state.orchestrator.ResetVideoStatuses()
			if errors.Is(err, generator.ErrAlreadyRunning) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"reset": reset})
		})
	}

	prompts := r.Group("/prompts")
	{
		prompts.POST("/:id/copied", func(c *gin.Context) {
			id, err := parseID(c)
			if err != nil {
				return
			}
			if err := state.videoService.MarkPromptCopied(id); err != nil {
				statusForServiceError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

// GenerationRouter registers job control and the event stream.
func GenerationRouter(r *gin.RouterGroup) {
	gen := r.Group("/generation")
	{
		gen.POST("", func(c *gin.Context) {
			var req generationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			jobID, err := state.orchestrator.Start(model.GenerationParameters{
				PromptsPerVideo: req.PromptsPerVideo,
				ComplexityLevel: req.ComplexityLevel,
				AspectRatio:     req.AspectRatio,
				VariationLevel:  req.VariationLevel,
				BatchCap:        req.BatchCap,
			})
			switch {
			case errors.Is(err, generator.ErrAlreadyRunning):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, generator.ErrNoPendingVideos),
				errors.Is(err, cloud.ErrAPIKeyMissing):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case err != nil:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
			}
		})

		gen.DELETE("", func(c *gin.Context) {
			if !state.orchestrator.Stop() {
				c.JSON(http.StatusConflict, gin.H{"error": "no generation job is running"})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"stopping": true})
		})

		gen.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, state.orchestrator.Status())
		})

		gen.GET("/events", state.hub.subscribe)
	}
}

// StatsRouter registers library statistics and maintenance.
func StatsRouter(r *gin.RouterGroup) {
	r.GET("/stats", func(c *gin.Context) {
		stats, err := state.videoService.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		pending, err := state.orchestrator.PendingCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"library":       stats,
			"pending_queue": pending,
			"generation":    state.orchestrator.Status(),
		})
	})

	r.POST("/maintenance/cleanup", func(c *gin.Context) {
		var req cleanupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		db := state.config.Database
		if req.Days < db.MinCleanupDays || req.Days > db.MaxCleanupDays {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "cleanup window must be between the configured bounds",
				"min":   db.MinCleanupDays,
				"max":   db.MaxCleanupDays,
			})
			return
		}
		removed, err := state.videoService.CleanupOldData(req.Days)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	})

	r.POST("/maintenance/retry-failed", func(c *gin.Context) {
		reset, err := state.orchestrator.CleanupFailedVideos()
		if errors.Is(err, generator.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": reset})
	})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, err
	}
	return id, nil
}

func statusForServiceError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
