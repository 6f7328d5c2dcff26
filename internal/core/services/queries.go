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

// Package services provides the persistence layer for the video queue and
// the prompts generated for it, backed by a local SQLite database. This file
// holds the schema definition and all SQL statements so the query surface of
// the service is visible in one place.
package services

// schemaDDL creates the tables and indexes on first open. Statements are
// idempotent so reopening an existing database is safe.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS videos (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    filename   TEXT NOT NULL,
    filepath   TEXT NOT NULL UNIQUE,
    filesize   INTEGER NOT NULL DEFAULT 0,
    status     TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prompts (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id         INTEGER NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
    prompt_text      TEXT NOT NULL,
    complexity_level INTEGER NOT NULL DEFAULT 1,
    aspect_ratio     TEXT NOT NULL DEFAULT '16:9',
    variation_level  INTEGER NOT NULL DEFAULT 1,
    status           TEXT NOT NULL DEFAULT 'generated',
    is_copied        INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS app_settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_videos_status ON videos (status);
CREATE INDEX IF NOT EXISTS idx_prompts_video_id ON prompts (video_id);
CREATE INDEX IF NOT EXISTS idx_prompts_status ON prompts (status);
`

const (
	insertVideoQuery = `
INSERT INTO videos (filename, filepath, filesize, status) VALUES (?, ?, ?, ?)`

	selectVideoColumns = `
SELECT v.id, v.filename, v.filepath, v.filesize, v.status, v.created_at, v.updated_at,
       COUNT(p.id)                    AS prompt_count,
       COALESCE(SUM(p.is_copied), 0)  AS copied_count
  FROM videos v
  LEFT JOIN prompts p ON p.video_id = v.id`

	selectVideoByIDQuery = selectVideoColumns + `
 WHERE v.id = ?
 GROUP BY v.id`

	selectVideoByPathQuery = selectVideoColumns + `
 WHERE v.filepath = ?
 GROUP BY v.id`

	listVideosQuery = selectVideoColumns + `
 GROUP BY v.id
 ORDER BY v.created_at, v.id`

	listVideosByStatusQuery = selectVideoColumns + `
 WHERE v.status = ?
 GROUP BY v.id
 ORDER BY v.created_at, v.id`

	countVideosByStatusQuery = `
SELECT COUNT(*) FROM videos WHERE status = ?`

	updateVideoStatusQuery = `
UPDATE videos SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	resetVideoStatusQuery = `
UPDATE videos SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`

	resetAllVideosQuery = `
UPDATE videos SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status <> ?`

	deleteVideoQuery = `
DELETE FROM videos WHERE id = ?`

	insertPromptQuery = `
INSERT INTO prompts (video_id, prompt_text, complexity_level, aspect_ratio, variation_level, status)
VALUES (?, ?, ?, ?, ?, ?)`

	selectPromptsByVideoQuery = `
SELECT id, video_id, prompt_text, complexity_level, aspect_ratio, variation_level, status, is_copied, created_at
  FROM prompts
 WHERE video_id = ?
 ORDER BY created_at, id`

	markPromptCopiedQuery = `
UPDATE prompts SET is_copied = 1 WHERE id = ?`

	libraryStatsQuery = `
SELECT (SELECT COUNT(*) FROM videos)                               AS total_videos,
       (SELECT COUNT(*) FROM videos WHERE status = 'pending')      AS pending_videos,
       (SELECT COUNT(*) FROM videos WHERE status = 'processing')   AS processing_videos,
       (SELECT COUNT(*) FROM videos WHERE status = 'completed')    AS completed_videos,
       (SELECT COUNT(*) FROM videos WHERE status = 'error')        AS error_videos,
       (SELECT COUNT(*) FROM prompts)                              AS total_prompts,
       (SELECT COUNT(*) FROM prompts WHERE is_copied = 1)          AS copied_prompts`

	cleanupOldVideosQuery = `
DELETE FROM videos
 WHERE status = 'completed'
   AND created_at < datetime('now', ?)`

	clearPromptsQuery = `DELETE FROM prompts`
	clearVideosQuery  = `DELETE FROM videos`

	selectSettingQuery = `
SELECT value FROM app_settings WHERE key = ?`

	upsertSettingQuery = `
INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
)
