package main

import (
	"context"
	"strings"

	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/urfave/cli/v3"
)

// AssistantStatus reports whether the text assistant answers and which models it serves.
func (r *Runner) AssistantStatus(ctx context.Context, cmd *cli.Command) error {
	a := r.textAssistant()
	if a == nil {
		if cmd.Bool("json") {
			return r.writeJSON(services.AssistantStatus{URL: r.config.Assistant.URL, Model: r.config.Assistant.Model}, true)
		}
		r.writePlain("🤖 AI Status: Disabled (set [assistant] enabled = true to use it)\n")
		return nil
	}

	status := a.Status(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlain("🤖 AI Status: %s | Model: %s\n", status.Label(), status.Model)
	r.writePlain("URL:       %s\n", status.URL)
	if !status.Available {
		r.writePlain("Filenames will be cleaned with the built-in rules.\n")
		return nil
	}

	installed := "no"
	if status.Installed {
		installed = "yes"
	}
	r.writePlain("Installed: %s\n", installed)
	if len(status.Models) > 0 {
		r.writePlain("Models:    %s\n", strings.Join(status.Models, ", "))
	}
	if !status.Installed {
		r.writePlain("Run 'ollama pull %s' to install the model.\n", status.Model)
	}
	return nil
}
