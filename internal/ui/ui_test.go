package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

func testPlaylist() (*models.Playlist, tasks.Census) {
	tracks := []models.Track{
		{ID: "a", Title: "One", Artists: []string{"A"}, Number: 1},
		{ID: "b", Title: "Two", Artists: []string{"B"}, Number: 2},
	}
	playlist := &models.Playlist{ID: "pl", Name: "Road Trip", Tracks: tracks}
	return playlist, tasks.Census{Total: 2, Downloaded: 1, Pending: tracks[1:], Dir: "/music/Road Trip - pl"}
}

func finishedRun() *models.DownloadRun {
	run := models.NewDownloadRun("pl", "Road Trip", "/music")
	run.AddOutcome(models.TrackOutcome{Number: 2, Title: "Two", Artist: "B", State: models.StateFailed})
	run.Finish(models.RunSummary{Total: 2, Skipped: 1, Failed: 1})
	return run
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain feeds progress messages back into the model until the run completes.
func drain(t *testing.T, m *Model) {
	t.Helper()
	for i := 0; i < 100; i++ {
		msg := m.waitForProgress()()
		m.Update(msg)
		if _, ok := msg.(downloadCompleteMsg); ok {
			return
		}
	}
	t.Fatal("run never completed")
}

func TestModel(t *testing.T) {
	t.Run("Confirm View Shows Census", func(t *testing.T) {
		playlist, census := testPlaylist()
		m := NewModel(context.Background(), playlist, census, "🤖 AI Status: Available | Model: gpt-oss", nil)

		view := m.View()
		for _, want := range []string{
			"Found 2 tracks in playlist.",
			"Already downloaded: 1 tracks",
			"New tracks to download: 1 tracks",
			"AI Status: Available",
			"B - Two",
		} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}
	})

	t.Run("Nothing Pending", func(t *testing.T) {
		playlist, census := testPlaylist()
		census.Downloaded, census.Pending = 2, nil
		m := NewModel(context.Background(), playlist, census, "", nil)

		if !strings.Contains(m.View(), "All tracks already downloaded") {
			t.Errorf("expected up-to-date message, got:\n%s", m.View())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != ConfirmView {
			t.Error("enter must not start a run with nothing pending")
		}
	})

	t.Run("Quit From Confirm", func(t *testing.T) {
		playlist, census := testPlaylist()
		m := NewModel(context.Background(), playlist, census, "", nil)

		_, cmd := m.Update(keyMsg("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("Runs And Shows Result", func(t *testing.T) {
		playlist, census := testPlaylist()
		run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.DownloadRun, error) {
			progress <- tasks.ProgressUpdate{Phase: tasks.SkipTrack, Step: 1, Total: 2, Message: "[1/2] ⏭️  Skipping (already downloaded): A - One"}
			progress <- tasks.ProgressUpdate{Phase: tasks.FailTrack, Step: 2, Total: 2, Message: "    ✗ Failed: B - Two: no results"}
			return finishedRun(), nil
		}
		m := NewModel(context.Background(), playlist, census, "", run)

		m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != DownloadView {
			t.Fatalf("expected download view, got %v", m.view)
		}

		drain(t, m)

		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}
		view := m.View()
		if !strings.Contains(view, "Failed to download 1 tracks") || !strings.Contains(view, "B - Two") {
			t.Errorf("unexpected result view:\n%s", view)
		}
		if len(m.lines) != 2 {
			t.Errorf("expected 2 log lines, got %d", len(m.lines))
		}

		m.Update(keyMsg("c"))
		if !m.WantsCarAudio() {
			t.Error("expected car audio request")
		}
	})

	t.Run("Quit During Download Cancels", func(t *testing.T) {
		playlist, census := testPlaylist()
		started := make(chan struct{})
		run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.DownloadRun, error) {
			close(started)
			<-ctx.Done()
			r := models.NewDownloadRun("pl", "Road Trip", "/music")
			r.Finish(models.RunSummary{Total: 2, Skipped: 1, Interrupted: true})
			return r, nil
		}
		m := NewModel(context.Background(), playlist, census, "", run).AutoStart()

		m.Init()
		<-started

		_, cmd := m.Update(keyMsg("q"))
		if cmd != nil {
			t.Error("quit during a download should wait for the run to stop")
		}

		drain(t, m)
		if !strings.Contains(m.View(), "Download interrupted by user.") {
			t.Errorf("expected interrupted summary, got:\n%s", m.View())
		}
	})

	t.Run("Run Error", func(t *testing.T) {
		playlist, census := testPlaylist()
		run := func(context.Context, chan<- tasks.ProgressUpdate) (*models.DownloadRun, error) {
			return nil, errors.New("boom")
		}
		m := NewModel(context.Background(), playlist, census, "", run).AutoStart()
		m.Init()
		drain(t, m)

		if _, err := m.Result(); err == nil {
			t.Error("expected run error")
		}
		if !strings.Contains(m.View(), "Download failed: boom") {
			t.Errorf("unexpected view:\n%s", m.View())
		}
	})
}

func TestAppendLineBounds(t *testing.T) {
	m := &Model{}
	for i := 0; i < maxLogLines+5; i++ {
		m.appendLine("line")
	}
	m.appendLine("")
	if len(m.lines) != maxLogLines {
		t.Errorf("expected %d lines, got %d", maxLogLines, len(m.lines))
	}
}
