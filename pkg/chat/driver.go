// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package chat drives the interactive conversation with an Ollama model,
// including the tool-call loop that routes model-issued calls through live
// MCP sessions and feeds the results back.
package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"github.com/stacklok/hivechat/pkg/config"
	"github.com/stacklok/hivechat/pkg/hive"
	"github.com/stacklok/hivechat/pkg/logger"
)

// ToolRunner executes tools by qualified name. The orchestrator satisfies
// this; tests substitute fakes.
type ToolRunner interface {
	EnabledTools() []hive.Tool
	CallTool(ctx context.Context, qualifiedName string, arguments map[string]any) (*mcp.CallToolResult, error)
}

// ConfirmFunc decides whether a model-issued tool call may execute.
type ConfirmFunc func(qualifiedName string, arguments map[string]any) bool

// chatFn and listFn are the two Ollama API calls the driver makes. They are
// fields rather than direct method calls so tests can run the loop without a
// live daemon.
type chatFn func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
type listFn func(ctx context.Context) (*api.ListResponse, error)

// Reply is the outcome of one user query.
type Reply struct {
	// Text is the model's final answer after any tool rounds.
	Text string

	// ToolCalls counts the tool executions performed for this query.
	ToolCalls int

	// Metrics carries the token counts and timings of the final response.
	Metrics api.Metrics
}

// Driver owns the conversation history and the tool-call loop for one chat
// session. It is not safe for concurrent use; the interactive loop is the
// only caller.
type Driver struct {
	chat    chatFn
	list    listFn
	runner  ToolRunner
	out     io.Writer
	confirm ConfirmFunc

	model   config.Model
	opts    config.Chat
	history []api.Message

	// SessionID identifies this conversation in logs.
	SessionID string
}

// Option configures a Driver.
type Option func(*Driver)

// WithOutput sets the stream the assistant's output is written to as it
// arrives. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(d *Driver) {
		d.out = w
	}
}

// WithConfirm sets the tool-call confirmation callback. Without one, calls
// execute unconditionally.
func WithConfirm(fn ConfirmFunc) Option {
	return func(d *Driver) {
		d.confirm = fn
	}
}

// WithModelName overrides the configured model for this session.
func WithModelName(name string) Option {
	return func(d *Driver) {
		if name != "" {
			d.model.Name = name
		}
	}
}

// New creates a chat driver against the configured Ollama host.
func New(cfg *config.Config, runner ToolRunner, opts ...Option) (*Driver, error) {
	client, err := newOllamaClient(cfg.Model.Host)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		chat:      client.Chat,
		list:      client.List,
		runner:    runner,
		out:       os.Stdout,
		model:     cfg.Model,
		opts:      cfg.Chat,
		SessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.resetHistory()
	return d, nil
}

func newOllamaClient(host string) (*api.Client, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}
	return api.NewClient(base, http.DefaultClient), nil
}

// Model returns the model name in use.
func (d *Driver) Model() string {
	return d.model.Name
}

// SetModel switches the conversation to a different model. History is kept;
// models see the same transcript.
func (d *Driver) SetModel(name string) {
	if name != "" {
		d.model.Name = name
	}
}

// Models lists the model names available on the Ollama host.
func (d *Driver) Models(ctx context.Context) ([]string, error) {
	resp, err := d.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ResetHistory clears the conversation, keeping only the system prompt.
func (d *Driver) ResetHistory() {
	d.resetHistory()
}

func (d *Driver) resetHistory() {
	d.history = nil
	if d.model.SystemPrompt != "" {
		d.history = append(d.history, api.Message{Role: "system", Content: d.model.SystemPrompt})
	}
}

// Send submits one user query and runs the tool-call loop to completion:
// stream the model's reply, execute any tool calls it issues through the
// runner, feed the results back, and repeat until the model answers in
// plain text or the round limit is reached.
func (d *Driver) Send(ctx context.Context, prompt string) (*Reply, error) {
	if !deref(d.opts.RetainContext, true) {
		d.resetHistory()
	}
	d.history = append(d.history, api.Message{Role: "user", Content: prompt})

	tools, err := OllamaTools(d.runner.EnabledTools())
	if err != nil {
		return nil, err
	}

	maxRounds := d.opts.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}

	reply := &Reply{}
	for round := 0; ; round++ {
		msg, metrics, err := d.streamOnce(ctx, tools)
		if err != nil {
			return nil, err
		}
		d.history = append(d.history, msg)
		reply.Text = msg.Content
		reply.Metrics = metrics

		if len(msg.ToolCalls) == 0 {
			break
		}
		if round >= maxRounds {
			logger.Warnf("Model exceeded %d tool rounds for one query; stopping", maxRounds)
			fmt.Fprintf(d.out, "\n[tool round limit reached after %d rounds]\n", maxRounds)
			break
		}

		for _, call := range msg.ToolCalls {
			d.history = append(d.history, d.executeToolCall(ctx, call))
			reply.ToolCalls++
		}
	}

	if deref(d.opts.ShowMetrics, false) {
		d.printMetrics(reply.Metrics)
	}
	return reply, nil
}

// streamOnce performs one streaming chat request and collects the assistant
// message from the response chunks.
func (d *Driver) streamOnce(ctx context.Context, tools []api.Tool) (api.Message, api.Metrics, error) {
	req := &api.ChatRequest{
		Model:    d.model.Name,
		Messages: d.history,
		Tools:    tools,
		Options:  d.requestOptions(),
	}
	if d.model.Think != nil {
		req.Think = &api.ThinkValue{Value: *d.model.Think}
	}

	msg := api.Message{Role: "assistant"}
	var metrics api.Metrics
	showThinking := deref(d.model.ShowThinking, false)

	err := d.chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Thinking != "" {
			msg.Thinking += resp.Message.Thinking
			if showThinking {
				fmt.Fprint(d.out, resp.Message.Thinking)
			}
		}
		if resp.Message.Content != "" {
			msg.Content += resp.Message.Content
			fmt.Fprint(d.out, resp.Message.Content)
		}
		msg.ToolCalls = append(msg.ToolCalls, resp.Message.ToolCalls...)
		if resp.Done {
			metrics = resp.Metrics
			fmt.Fprintln(d.out)
		}
		return nil
	})
	if err != nil {
		return msg, metrics, fmt.Errorf("chat request failed: %w", err)
	}
	return msg, metrics, nil
}

// executeToolCall runs one model-issued tool call and shapes the result as
// the tool message fed back to the model. Failures, including a declined
// confirmation, become tool output rather than aborting the query.
func (d *Driver) executeToolCall(ctx context.Context, call api.ToolCall) api.Message {
	name := call.Function.Name
	args := map[string]any(call.Function.Arguments)

	if d.confirm != nil && !d.confirm(name, args) {
		logger.Infof("Tool call %s declined by user (session %s)", name, d.SessionID)
		return toolMessage(name, "tool call was declined by the user")
	}

	if deref(d.opts.ShowToolExecution, true) {
		fmt.Fprintf(d.out, "[calling tool %s]\n", name)
	}
	logger.Debugf("Executing tool %s (session %s)", name, d.SessionID)

	result, err := d.runner.CallTool(ctx, name, args)
	if err != nil {
		logger.Warnf("Tool %s failed: %v", name, err)
		return toolMessage(name, fmt.Sprintf("tool execution failed: %v", err))
	}

	text := ResultText(result)
	if result.IsError {
		text = "tool reported an error: " + text
	}
	return toolMessage(name, text)
}

func toolMessage(name, content string) api.Message {
	return api.Message{Role: "tool", ToolName: name, Content: content}
}

// requestOptions maps the configured generation options into the request's
// option map, leaving unset fields to the model's own defaults.
func (d *Driver) requestOptions() map[string]any {
	o := d.model.Options
	opts := map[string]any{}
	if o.Temperature != nil {
		opts["temperature"] = *o.Temperature
	}
	if o.TopK != nil {
		opts["top_k"] = *o.TopK
	}
	if o.TopP != nil {
		opts["top_p"] = *o.TopP
	}
	if o.MinP != nil {
		opts["min_p"] = *o.MinP
	}
	if o.NumCtx != nil {
		opts["num_ctx"] = *o.NumCtx
	}
	if o.NumPredict != nil {
		opts["num_predict"] = *o.NumPredict
	}
	if o.RepeatPenalty != nil {
		opts["repeat_penalty"] = *o.RepeatPenalty
	}
	if o.Seed != nil {
		opts["seed"] = *o.Seed
	}
	if len(o.Stop) > 0 {
		opts["stop"] = o.Stop
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (d *Driver) printMetrics(m api.Metrics) {
	var rate float64
	if m.EvalDuration > 0 {
		rate = float64(m.EvalCount) / m.EvalDuration.Seconds()
	}
	fmt.Fprintf(d.out, "[%d prompt tokens, %d response tokens, %.1f tok/s, total %s]\n",
		m.PromptEvalCount, m.EvalCount, rate, m.TotalDuration.Round(10*time.Millisecond))
}

func deref(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
