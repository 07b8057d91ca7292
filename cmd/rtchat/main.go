package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	rtsession "github.com/codewandler/rtsession-go"
	"github.com/codewandler/rtsession-go/content"
	"github.com/codewandler/rtsession-go/tool"
)

type CLI struct {
	Model        string            `help:"Realtime model." env:"RTCHAT_MODEL" default:"gpt-realtime"`
	Key          string            `help:"API key, defaults to OPENAI_KEY or OPENAI_API_KEY." env:"RTCHAT_API_KEY"`
	URL          string            `help:"Realtime endpoint." env:"RTCHAT_URL" default:"wss://api.openai.com/v1/realtime"`
	Instructions string            `help:"Instructions for the assistant." default:"You are a helpful assistant. Keep answers short."`
	Voice        string            `help:"Output voice." default:"marin"`
	AudioIn      string            `help:"Stream a raw 16 bit mono PCM file as microphone input."`
	AudioOut     string            `help:"Write assistant audio as raw 16 bit mono PCM to this file."`
	SampleRate   int               `help:"Sample rate of the audio files." default:"24000"`
	MCP          map[string]string `help:"Remote MCP servers as label=url." placeholder:"LABEL=URL"`
	MCPApproval  string            `help:"Approval mode for remote MCP servers." enum:"always,never" default:"always"`
	MCPCommand   []string          `help:"Local MCP server command whose tools are executed by rtchat." sep:"none"`
	MetricsAddr  string            `help:"Serve Prometheus metrics on this address."`
	Debug        bool              `help:"Enable debug logs."`
}

func main() {
	for _, envFile := range []string{".env", "rtchat.env"} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				slog.Error("failed to load env file", slog.String("file", envFile), slog.Any("err", err))
			}
		}
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("rtchat"),
		kong.Description("Chat with a realtime model from the terminal."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(cli.Run())
}

func (c *CLI) Run() error {
	level := slog.LevelWarn
	if c.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	metrics := rtsession.NewMetrics("rtchat")
	if c.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(c.MetricsAddr, metrics.Handler()); err != nil {
				logger.Error("metrics server failed", slog.Any("err", err))
			}
		}()
	}

	local := newLocalTools()
	if len(c.MCPCommand) > 0 {
		client, err := connectLocalMCP(ctx, c.MCPCommand)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := local.addMCP(ctx, client); err != nil {
			return err
		}
	}

	opts := c.sessionOptions(local.tools)
	sessionOpts := []rtsession.Option{
		rtsession.WithLogger(logger),
		rtsession.WithModel(c.Model),
		rtsession.WithURL(c.URL),
		rtsession.WithMetrics(metrics),
		rtsession.WithSessionOptions(opts),
	}
	if c.Key != "" {
		sessionOpts = append(sessionOpts, rtsession.WithKey(c.Key))
	}

	session := rtsession.New(sessionOpts...)
	defer session.Close()

	negotiated, err := session.CreateSession(ctx)
	if err != nil {
		return err
	}
	if negotiated == nil {
		return nil
	}
	fmt.Fprintf(os.Stderr, "connected: session %s, model %s\n", negotiated.ID, negotiated.Model)

	out := make(chan rtsession.ClientMessage, 16)
	approvals := make(chan content.MCPApprovalRequest, 4)

	go c.readInput(ctx, session, out, approvals)

	var player *rtsession.AudioPlayer
	if c.AudioOut != "" {
		f, err := os.Create(c.AudioOut)
		if err != nil {
			return err
		}
		defer f.Close()
		player = rtsession.NewAudioPlayer(rtsession.DefaultSampleRate, c.SampleRate)
		go func() { _, _ = io.Copy(f, player) }()
	}
	if c.AudioIn != "" {
		go c.streamAudio(ctx, out)
	}

	for msg, err := range session.GetStreamingResponse(ctx, out) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if player != nil {
			if err := player.Handle(msg); err != nil {
				logger.Error("playback failed", slog.Any("err", err))
			}
		}
		c.handle(ctx, session, local, msg, approvals)
	}
	return nil
}

func (c *CLI) sessionOptions(tools []tool.Tool) rtsession.SessionOptions {
	opts := rtsession.SessionOptions{
		Kind:             rtsession.SessionKindRealtime,
		Model:            c.Model,
		Instructions:     c.Instructions,
		OutputModalities: []rtsession.Modality{rtsession.ModalityText},
		Tools:            tools,
		ToolChoice:       tool.ChoiceAuto,
	}

	for label, serverURL := range c.MCP {
		var approval tool.ApprovalMode = tool.AlwaysRequire{}
		if c.MCPApproval == "never" {
			approval = tool.NeverRequire{}
		}
		opts.Tools = append(opts.Tools, tool.MCPServer{
			ServerLabel: label,
			Connection:  tool.ServerURL(serverURL),
			Approval:    approval,
		})
	}

	if c.AudioOut != "" {
		opts.OutputModalities = []rtsession.Modality{rtsession.ModalityAudio}
		opts.OutputAudioFormat = rtsession.PCM16(rtsession.DefaultSampleRate)
		opts.Voice = c.Voice
	}
	if c.AudioIn != "" {
		opts.InputAudioFormat = rtsession.PCM16(rtsession.DefaultSampleRate)
		opts.VoiceActivityDetection = &rtsession.SemanticVAD{CreateResponse: true, InterruptResponse: true}
		opts.Transcription = &rtsession.TranscriptionOptions{Model: "gpt-4o-mini-transcribe"}
	}
	if len(opts.Tools) == 0 {
		opts.ToolChoice = tool.ChoiceNone
	}
	return opts
}

// readInput turns stdin lines into user messages. While an approval is pending
// the next line answers it.
func (c *CLI) readInput(ctx context.Context, session *rtsession.Session, out chan<- rtsession.ClientMessage, approvals <-chan content.MCPApprovalRequest) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		select {
		case req := <-approvals:
			approved := strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
			err := session.InjectClientMessage(ctx, &rtsession.ConversationItemCreate{
				Item: content.Item{Parts: []content.Part{content.MCPApprovalResponse{ID: req.ID, Approved: approved}}},
			})
			if err == nil {
				err = session.InjectClientMessage(ctx, &rtsession.ResponseCreate{})
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, "approval failed:", err)
			}
			continue
		default:
		}

		if line == "" {
			continue
		}
		for _, msg := range []rtsession.ClientMessage{
			&rtsession.ConversationItemCreate{Item: content.Item{
				Role:  content.RoleUser,
				Parts: []content.Part{content.Text{Text: line}},
			}},
			&rtsession.ResponseCreate{},
		} {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *CLI) streamAudio(ctx context.Context, out chan<- rtsession.ClientMessage) {
	f, err := os.Open(c.AudioIn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio input:", err)
		return
	}
	defer f.Close()

	input := rtsession.NewAudioInput(f, c.SampleRate, rtsession.DefaultSampleRate, 100*time.Millisecond)
	if err := input.Run(ctx, out); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "audio input:", err)
	}
}

func (c *CLI) handle(ctx context.Context, session *rtsession.Session, local *localTools, msg rtsession.ServerMessage, approvals chan<- content.MCPApprovalRequest) {
	switch m := msg.(type) {
	case *rtsession.ErrorMessage:
		fmt.Fprintln(os.Stderr, "error:", m.Error())

	case *rtsession.OutputMessage:
		switch m.Kind() {
		case rtsession.KindOutputTextDelta, rtsession.KindOutputAudioTranscriptDelta:
			fmt.Print(m.Text)
		case rtsession.KindOutputTextDone, rtsession.KindOutputAudioTranscriptDone:
			fmt.Println()
		case rtsession.KindFunctionCallArgumentsDone:
			go local.answer(ctx, session, *m.FunctionCall)
		}

	case *rtsession.TranscriptionMessage:
		if m.Kind() == rtsession.KindInputAudioTranscriptionCompleted {
			fmt.Println("you>", m.Transcription)
		}

	case *rtsession.ItemMessage:
		if m.Kind() != rtsession.KindOutputItemDone {
			return
		}
		for _, part := range m.Item.Parts {
			switch p := part.(type) {
			case content.MCPApprovalRequest:
				if !offerApproval(ctx, approvals, p) {
					fmt.Fprintln(os.Stderr, "approval dropped, too many pending:", p.ToolCall.ToolName)
					continue
				}
				fmt.Printf("approve %s on %s? [y/N] ", p.ToolCall.ToolName, p.ToolCall.ServerName)
			case content.MCPToolResult:
				for _, o := range p.Output {
					if e, ok := o.(content.Error); ok {
						fmt.Fprintln(os.Stderr, "mcp call failed:", e.Message)
					}
				}
			}
		}

	case *rtsession.ResponseMessage:
		if m.Kind() == rtsession.KindResponseDone && m.Error != nil {
			fmt.Fprintln(os.Stderr, "response failed:", m.Error.Error())
		}
	}
}

// offerApproval queues req for readInput without blocking the event loop. It
// reports false when the queue is full or ctx is done.
func offerApproval(ctx context.Context, approvals chan<- content.MCPApprovalRequest, req content.MCPApprovalRequest) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case approvals <- req:
		return true
	default:
		return false
	}
}

type localFunc func(ctx context.Context, args map[string]any) (any, error)

// localTools are functions executed by rtchat itself.
type localTools struct {
	tools []tool.Tool
	funcs map[string]localFunc
}

func newLocalTools() *localTools {
	l := &localTools{funcs: make(map[string]localFunc)}
	l.add(tool.Function{
		Name:        "get_time",
		Description: "Get the current local time",
		Parameters:  tool.Object(nil),
	}, func(context.Context, map[string]any) (any, error) {
		return time.Now().Format(time.RFC3339), nil
	})
	return l
}

func (l *localTools) add(f tool.Function, fn localFunc) {
	l.tools = append(l.tools, f)
	l.funcs[f.Name] = fn
}

func (l *localTools) addMCP(ctx context.Context, client *tool.MCPClient) error {
	tools, err := client.Tools(ctx)
	if err != nil {
		return err
	}
	for _, t := range tools {
		f := t.(tool.Function)
		l.add(f, func(ctx context.Context, args map[string]any) (any, error) {
			return client.Call(ctx, f.Name, args)
		})
	}
	return nil
}

func (l *localTools) answer(ctx context.Context, session *rtsession.Session, call content.FunctionCall) {
	var result any
	fn, ok := l.funcs[call.Name]
	switch {
	case !ok:
		result = map[string]any{"error": "unknown tool " + call.Name}
	case call.Arguments == nil:
		result = map[string]any{"error": "invalid arguments"}
	default:
		res, err := fn(ctx, call.Arguments)
		if err != nil {
			result = map[string]any{"error": err.Error()}
		} else {
			result = res
		}
	}

	err := session.InjectClientMessage(ctx, &rtsession.ConversationItemCreate{
		Item: content.Item{Parts: []content.Part{content.FunctionResult{CallID: call.CallID, Result: result}}},
	})
	if err == nil {
		err = session.InjectClientMessage(ctx, &rtsession.ResponseCreate{})
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tool result failed:", err)
	}
}

func connectLocalMCP(ctx context.Context, command []string) (*tool.MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "rtchat", Version: "v0.1.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.CommandTransport{Command: exec.Command(command[0], command[1:]...)}, nil)
	if err != nil {
		return nil, fmt.Errorf("connect mcp server: %w", err)
	}
	return tool.NewMCPClient(cs), nil
}
