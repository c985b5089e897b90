package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - Company, Position from company.go
// - AIResume, UserResume from resume.go
// - Interview, HistoryDetail from interview.go
// - MediaFile, GazeAnalysis from media.go

// Database schema overview:
// 1. companies - Read-only company profiles backing the in-memory catalog
// 2. positions - Position catalog referenced by resumes and interviews
// 3. ai_resumes - Source records for AI candidate personas
// 4. user_resumes - Optional resumes uploaded by candidates
// 5. interviews - One row per completed interview, created by the evaluation pipeline
// 6. history_details - Per-question evaluation rows for both answerers
// 7. media_files - Object storage metadata for uploaded gaze videos
// 8. gaze_analyses - Scored gaze artifacts linked to finalized interviews
