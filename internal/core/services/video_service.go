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

// This file implements VideoService, the data access object for the video
// queue, its generated prompts, and small app settings. All reads that
// return videos include the prompt and copied counts so the API never needs
// a follow-up query per row.
package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/promptpilot/video-prompt-studio/internal/core/model"
)

var (
	// ErrNotFound is returned when a video or prompt does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateVideo is returned when a filepath is already queued.
	ErrDuplicateVideo = errors.New("video already exists in the library")
)

// LibraryStats aggregates the state of the whole library for the stats API.
type LibraryStats struct {
	TotalVideos      int `json:"total_videos"`
	PendingVideos    int `json:"pending_videos"`
	ProcessingVideos int `json:"processing_videos"`
	CompletedVideos  int `json:"completed_videos"`
	ErrorVideos      int `json:"error_videos"`
	TotalPrompts     int `json:"total_prompts"`
	CopiedPrompts    int `json:"copied_prompts"`
}

// VideoService owns the SQLite handle. It is safe for concurrent use; the
// driver serializes writes.
type VideoService struct {
	db *sql.DB
}

// NewVideoService opens (creating if needed) the database at the given path
// and ensures the schema exists. Foreign keys are enabled so deleting a
// video removes its prompts.
func NewVideoService(path string) (*VideoService, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &VideoService{db: db}, nil
}

// Close releases the database handle.
func (s *VideoService) Close() error {
	return s.db.Close()
}

// AddVideo queues a new video in pending state and returns the stored
// record. Queuing the same filepath twice yields ErrDuplicateVideo.
func (s *VideoService) AddVideo(filename, filepath string, filesize int64) (*model.Video, error) {
	res, err := s.db.Exec(insertVideoQuery, filename, filepath, filesize, model.VideoStatusPending)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVideo, filepath)
		}
		return nil, fmt.Errorf("failed to add video %s: %w", filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.VideoByID(id)
}

// VideoByID fetches one video with its prompt counts.
func (s *VideoService) VideoByID(id int64) (*model.Video, error) {
	return s.scanVideo(s.db.QueryRow(selectVideoByIDQuery, id))
}

// VideoByPath fetches one video by its unique filepath.
func (s *VideoService) VideoByPath(path string) (*model.Video, error) {
	return s.scanVideo(s.db.QueryRow(selectVideoByPathQuery, path))
}

// ListVideos returns the whole library in insertion order.
func (s *VideoService) ListVideos() ([]*model.Video, error) {
	return s.queryVideos(listVideosQuery)
}

// PendingVideos returns the queue a generation job will work through, in
// insertion order.
func (s *VideoService) PendingVideos() ([]*model.Video, error) {
	return s.queryVideos(listVideosByStatusQuery, model.VideoStatusPending)
}

// PendingCount reports the size of the pending queue.
func (s *VideoService) PendingCount() (int, error) {
	var count int
	err := s.db.QueryRow(countVideosByStatusQuery, model.VideoStatusPending).Scan(&count)
	return count, err
}

// UpdateVideoStatus transitions one video and bumps its updated_at.
func (s *VideoService) UpdateVideoStatus(videoID int64, status string) error {
	res, err := s.db.Exec(updateVideoStatusQuery, status, videoID)
	if err != nil {
		return fmt.Errorf("failed to update status of video %d: %w", videoID, err)
	}
	return requireRow(res)
}

// ResetProcessingVideos returns videos stranded in processing to pending.
// Called after a stopped job and on startup after an unclean shutdown.
func (s *VideoService) ResetProcessingVideos() (int, error) {
	return s.resetByStatus(model.VideoStatusProcessing)
}

// ResetFailedVideos returns errored videos to pending for a retry.
func (s *VideoService) ResetFailedVideos() (int, error) {
	return s.resetByStatus(model.VideoStatusError)
}

// ResetAllVideos returns every video to pending, whatever its state.
func (s *VideoService) ResetAllVideos() (int, error) {
	res, err := s.db.Exec(resetAllVideosQuery, model.VideoStatusPending, model.VideoStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to reset video statuses: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteVideo removes a video and, through the foreign key cascade, all of
// its prompts.
func (s *VideoService) DeleteVideo(videoID int64) error {
	res, err := s.db.Exec(deleteVideoQuery, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete video %d: %w", videoID, err)
	}
	return requireRow(res)
}

// AddPrompt stores one generated prompt for a video.
func (s *VideoService) AddPrompt(videoID int64, text string, complexityLevel int, aspectRatio string, variationLevel int) (int64, error) {
	res, err := s.db.Exec(insertPromptQuery, videoID, text, complexityLevel, aspectRatio, variationLevel, model.PromptStatusGenerated)
	if err != nil {
		return 0, fmt.Errorf("failed to add prompt for video %d: %w", videoID, err)
	}
	return res.LastInsertId()
}

// PromptsByVideo returns a video's prompts in generation order.
func (s *VideoService) PromptsByVideo(videoID int64) ([]*model.Prompt, error) {
	rows, err := s.db.Query(selectPromptsByVideoQuery, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts for video %d: %w", videoID, err)
	}
	defer func() { _ = rows.Close() }()

	prompts := make([]*model.Prompt, 0)
	for rows.Next() {
		p := &model.Prompt{}
		if err := rows.Scan(&p.ID, &p.VideoID, &p.PromptText, &p.ComplexityLevel, &p.AspectRatio,
			&p.VariationLevel, &p.Status, &p.IsCopied, &p.CreatedAt); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// MarkPromptCopied records that the user copied a prompt to the clipboard.
func (s *VideoService) MarkPromptCopied(promptID int64) error {
	res, err := s.db.Exec(markPromptCopiedQuery, promptID)
	if err != nil {
		return fmt.Errorf("failed to mark prompt %d copied: %w", promptID, err)
	}
	return requireRow(res)
}

// Stats aggregates library-wide counts in one round trip.
func (s *VideoService) Stats() (*LibraryStats, error) {
	stats := &LibraryStats{}
	err := s.db.QueryRow(libraryStatsQuery).Scan(
		&stats.TotalVideos, &stats.PendingVideos, &stats.ProcessingVideos,
		&stats.CompletedVideos, &stats.ErrorVideos, &stats.TotalPrompts, &stats.CopiedPrompts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute library stats: %w", err)
	}
	return stats, nil
}

// CleanupOldData deletes completed videos older than the given number of
// days, cascading to their prompts. Returns the number of videos removed.
func (s *VideoService) CleanupOldData(days int) (int, error) {
	if days < 1 {
		return 0, fmt.Errorf("cleanup window must be at least one day, got %d", days)
	}
	res, err := s.db.Exec(cleanupOldVideosQuery, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old videos: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearAll wipes the library. Used by tests and the destructive reset
// setting in the UI.
func (s *VideoService) ClearAll() error {
	if _, err := s.db.Exec(clearPromptsQuery); err != nil {
		return err
	}
	_, err := s.db.Exec(clearVideosQuery)
	return err
}

// Setting returns a stored app setting, or the empty string when unset.
func (s *VideoService) Setting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(selectSettingQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting stores an app setting, replacing any previous value.
func (s *VideoService) SetSetting(key, value string) error {
	_, err := s.db.Exec(upsertSettingQuery, key, value)
	return err
}

func (s *VideoService) resetByStatus(from string) (int, error) {
	res, err := s.db.Exec(resetVideoStatusQuery, model.VideoStatusPending, from)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s videos: %w", from, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *VideoService) queryVideos(query string, args ...interface{}) ([]*model.Video, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	videos := make([]*model.Video, 0)
	for rows.Next() {
		v := &model.Video{}
		if err := rows.Scan(&v.ID, &v.Filename, &v.Filepath, &v.Filesize, &v.Status,
			&v.CreatedAt, &v.UpdatedAt, &v.PromptCount, &v.CopiedCount); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *VideoService) scanVideo(row *sql.Row) (*model.Video, error) {
	v := &model.Video{}
	err := row.Scan(&v.ID, &v.Filename, &v.Filepath, &v.Filesize, &v.Status,
		&v.CreatedAt, &v.UpdatedAt, &v.PromptCount, &v.CopiedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// requireRow converts a zero-row UPDATE or DELETE into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
