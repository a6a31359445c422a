package ui

import (
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

type progressUpdateMsg tasks.ProgressUpdate

type downloadCompleteMsg struct {
	run *models.DownloadRun
	err error
}
