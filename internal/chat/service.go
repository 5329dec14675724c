// Package chat connects a conversation with the model to the command
// pipeline: every reply is searched for multipass commands, which are run.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbweber/vmchat/internal/llm"
	"github.com/jbweber/vmchat/internal/pipeline"
)

// ErrSessionRequired is returned by Send when no session ID is given.
var ErrSessionRequired = errors.New("session ID is required")

// RejectedExitCode is reported for text that is not a runnable command.
const RejectedExitCode = -1

const rejectedMessage = "not a valid multipass command"

// Submitter runs the commands found in text.
//
// In production, this is satisfied by *pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, text string) pipeline.Submission
}

// History stores conversations.
//
// In production, this is satisfied by *session.Store.
type History interface {
	Append(id string, msgs ...llm.Message) []llm.Message
}

// Executed reports one command found in a reply.
type Executed struct {
	Command    string `json:"command" yaml:"command"`
	Stdout     string `json:"stdout" yaml:"stdout"`
	Stderr     string `json:"stderr" yaml:"stderr"`
	ReturnCode int    `json:"returncode" yaml:"returncode"`
	TaskID     string `json:"taskId,omitempty" yaml:"taskId,omitempty"`
}

// Reply is the answer to one chat message.
type Reply struct {
	Response string     `json:"response" yaml:"response"`
	Executed []Executed `json:"executed" yaml:"executed"`
}

// Service answers chat messages.
type Service struct {
	provider llm.Provider
	history  History
	pipeline Submitter
	logger   *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(provider llm.Provider, history History, submitter Submitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		history:  history,
		pipeline: submitter,
		logger:   logger,
	}
}

// Model returns the provider's model name.
func (s *Service) Model() string {
	return s.provider.Model()
}

// Send records message in the session, asks the model for a reply and
// runs every command the reply contains.
func (s *Service) Send(ctx context.Context, sessionID, message string) (Reply, error) {
	if sessionID == "" {
		return Reply{}, ErrSessionRequired
	}

	s.logger.Info("Chat message received", "session", sessionID)

	msgs := s.history.Append(sessionID, llm.Message{Role: llm.RoleUser, Content: message})
	response, err := s.provider.Generate(ctx, msgs)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to get reply from %s: %w", s.provider.Model(), err)
	}
	s.history.Append(sessionID, llm.Message{Role: llm.RoleAssistant, Content: response})

	sub := s.pipeline.Submit(ctx, response)
	s.logger.Info("Commands found in reply", "session", sessionID, "count", sub.ExtractedCommandCount)

	return Reply{Response: response, Executed: Report(sub)}, nil
}

// Report flattens a Submission into one entry per command.
func Report(sub pipeline.Submission) []Executed {
	out := make([]Executed, 0, len(sub.Results))
	for _, r := range sub.Results {
		e := Executed{Command: r.Canonical, TaskID: r.TaskID}
		if e.Command == "" {
			e.Command = r.Input
		}

		switch {
		case r.Rejection != nil:
			e.Command = r.Input
			e.Stderr = rejectedMessage
			e.ReturnCode = RejectedExitCode
		case r.Error != "":
			e.Stderr = r.Error
			e.ReturnCode = RejectedExitCode
		case r.Status == pipeline.StatusStarted:
			e.Stdout = fmt.Sprintf("VM %q is being created...", r.Name)
		case r.Outcome != nil:
			e.Stdout = r.Outcome.Stdout
			e.Stderr = r.Outcome.Stderr
			e.ReturnCode = r.Outcome.ExitCode
		}
		out = append(out, e)
	}
	return out
}
