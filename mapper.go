package rtsession

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/codewandler/rtsession-go/content"
	"github.com/codewandler/rtsession-go/events"
	"github.com/codewandler/rtsession-go/tool"
)

func itemFromWire(w events.Item) content.Item {
	item := content.Item{ID: w.ID, Role: content.Role(w.Role)}

	switch w.Type {
	case events.ItemTypeMessage:
		for _, c := range w.Content {
			item.Parts = append(item.Parts, partFromWire(c))
		}

	case events.ItemTypeFunctionCall:
		item.Role = content.RoleAssistant
		item.Parts = []content.Part{*functionCall(w.CallID, w.Name, w.Arguments)}

	case events.ItemTypeFunctionCallOutput:
		item.Role = content.RoleTool
		item.Parts = []content.Part{content.FunctionResult{CallID: w.CallID, Result: content.ParseResult(w.Output)}}

	case events.ItemTypeMCPCall:
		item.Role = content.RoleAssistant
		item.Parts = mcpCallParts(w)

	case events.ItemTypeMCPListTools:
		item.Role = content.RoleAssistant
		for _, t := range w.Tools {
			item.Parts = append(item.Parts, content.MCPToolCall{ToolName: t.Name, ServerName: w.ServerLabel})
		}

	case events.ItemTypeMCPApprovalRequest:
		item.Role = content.RoleAssistant
		item.Parts = []content.Part{content.MCPApprovalRequest{
			ID: w.ID,
			ToolCall: content.MCPToolCall{
				CallID:     w.ID,
				ToolName:   w.Name,
				ServerName: w.ServerLabel,
				Arguments:  lenientArguments(w.Arguments),
			},
		}}

	case events.ItemTypeMCPApprovalResponse:
		item.Role = content.RoleUser
		item.Parts = []content.Part{content.MCPApprovalResponse{
			ID:       w.ApprovalRequestID,
			Approved: w.Approve != nil && *w.Approve,
			Reason:   w.Reason,
		}}

	default:
		item.Parts = []content.Part{rawPart(w)}
	}
	return item
}

// mcpCallParts expands one mcp_call item into the call followed by its result
// when the call has produced output or failed.
func mcpCallParts(w events.Item) []content.Part {
	call := content.MCPToolCall{
		CallID:     w.ID,
		ToolName:   w.Name,
		ServerName: w.ServerLabel,
		Arguments:  lenientArguments(w.Arguments),
	}
	parts := []content.Part{call}

	if msg := w.ErrorMessage(); msg != "" {
		return append(parts, content.MCPToolResult{
			CallID: w.ID,
			Output: []content.Part{content.Error{Message: msg}},
		})
	}
	if w.Output != "" {
		return append(parts, content.MCPToolResult{
			CallID: w.ID,
			Output: []content.Part{content.Text{Text: w.Output}},
		})
	}
	return parts
}

func partFromWire(c events.ItemContent) content.Part {
	switch c.Type {
	case events.ContentTypeInputText, events.ContentTypeOutputText, events.ContentTypeText:
		return content.Text{Text: c.Text}
	case events.ContentTypeInputAudio, events.ContentTypeOutputAudio, events.ContentTypeAudio:
		// conversation items usually omit the audio bytes and only carry the transcript
		data, _ := base64.StdEncoding.DecodeString(c.Audio)
		return content.Audio{Data: data, Transcript: c.Transcript}
	}
	return rawPart(c)
}

func rawPart(v any) content.Raw {
	data, _ := json.Marshal(v)
	return content.Raw{Value: data}
}

// functionCall builds a call part. Arguments stays nil while args is not a
// complete JSON object.
func functionCall(callID, name, args string) *content.FunctionCall {
	return &content.FunctionCall{
		CallID:       callID,
		Name:         name,
		Arguments:    lenientArguments(args),
		RawArguments: args,
	}
}

func lenientArguments(s string) map[string]any {
	args, err := content.ParseArguments(s)
	if err != nil {
		return nil
	}
	return args
}

// itemToWire converts an outbound item. Text and audio parts become a message
// item; a function call, function result or approval response must be the only
// part of its item.
func itemToWire(item content.Item) (events.Item, error) {
	if len(item.Parts) == 0 {
		return events.Item{}, fmt.Errorf("%w: no parts", ErrInvalidItem)
	}

	switch p := item.Parts[0].(type) {
	case content.FunctionResult:
		if len(item.Parts) > 1 {
			break
		}
		output, err := resultOutput(p.Result)
		if err != nil {
			return events.Item{}, err
		}
		return events.Item{
			ID:     item.ID,
			Type:   events.ItemTypeFunctionCallOutput,
			CallID: p.CallID,
			Output: output,
		}, nil

	case content.FunctionCall:
		if len(item.Parts) > 1 {
			break
		}
		args := p.RawArguments
		if args == "" && p.Arguments != nil {
			b, err := json.Marshal(p.Arguments)
			if err != nil {
				return events.Item{}, fmt.Errorf("marshal arguments: %w", err)
			}
			args = string(b)
		}
		return events.Item{
			ID:        item.ID,
			Type:      events.ItemTypeFunctionCall,
			CallID:    p.CallID,
			Name:      p.Name,
			Arguments: args,
		}, nil

	case content.MCPApprovalResponse:
		if len(item.Parts) > 1 {
			break
		}
		approve := p.Approved
		return events.Item{
			ID:                item.ID,
			Type:              events.ItemTypeMCPApprovalResponse,
			ApprovalRequestID: p.ID,
			Approve:           &approve,
			Reason:            p.Reason,
		}, nil

	case content.Text, content.Audio:
		return messageToWire(item)
	}

	return events.Item{}, fmt.Errorf("%w: unsupported part %T", ErrInvalidItem, item.Parts[0])
}

func messageToWire(item content.Item) (events.Item, error) {
	role := item.Role
	if role == "" {
		role = content.RoleUser
	}
	assistant := role == content.RoleAssistant

	w := events.Item{ID: item.ID, Type: events.ItemTypeMessage, Role: string(role)}
	for _, part := range item.Parts {
		switch p := part.(type) {
		case content.Text:
			t := events.ContentTypeInputText
			if assistant {
				t = events.ContentTypeOutputText
			}
			w.Content = append(w.Content, events.ItemContent{Type: t, Text: p.Text})
		case content.Audio:
			t := events.ContentTypeInputAudio
			if assistant {
				t = events.ContentTypeOutputAudio
			}
			w.Content = append(w.Content, events.ItemContent{
				Type:       t,
				Audio:      base64.StdEncoding.EncodeToString(p.Data),
				Transcript: p.Transcript,
			})
		default:
			return events.Item{}, fmt.Errorf("%w: %T in message item", ErrInvalidItem, part)
		}
	}
	return w, nil
}

// resultOutput renders a function result for the wire. Strings pass through,
// everything else is sent as JSON.
func resultOutput(result any) (string, error) {
	switch r := result.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case json.RawMessage:
		return string(r), nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal function result: %w", err)
	}
	return string(b), nil
}

func toolsToWire(tools []tool.Tool) []events.Tool {
	var out []events.Tool
	for _, t := range tools {
		if w, ok := toolToWire(t); ok {
			out = append(out, w)
		}
	}
	return out
}

func toolToWire(t tool.Tool) (events.Tool, bool) {
	switch t := t.(type) {
	case tool.Function:
		return functionToWire(t), true
	case *tool.Function:
		if t != nil {
			return functionToWire(*t), true
		}
	case tool.MCPServer:
		return mcpServerToWire(t), true
	case *tool.MCPServer:
		if t != nil {
			return mcpServerToWire(*t), true
		}
	}
	return events.Tool{}, false
}

func functionToWire(f tool.Function) events.Tool {
	return events.Tool{
		Type:        events.ToolTypeFunction,
		Name:        f.Name,
		Description: f.Description,
		Parameters:  f.Parameters,
	}
}

func mcpServerToWire(s tool.MCPServer) events.Tool {
	w := events.Tool{
		Type:              events.ToolTypeMCP,
		ServerLabel:       s.ServerLabel,
		ServerDescription: s.ServerDescription,
		AllowedTools:      s.AllowedTools,
		Headers:           s.Headers,
		Authorization:     s.Authorization,
		RequireApproval:   approvalToWire(s.Approval),
	}
	switch c := s.Connection.(type) {
	case tool.ServerURL:
		w.ServerURL = string(c)
	case tool.ConnectorID:
		w.ConnectorID = string(c)
	}
	return w
}

func approvalToWire(mode tool.ApprovalMode) any {
	switch m := mode.(type) {
	case tool.NeverRequire, *tool.NeverRequire:
		return events.ApprovalNever
	case tool.AlwaysRequire, *tool.AlwaysRequire:
		return events.ApprovalAlways
	case tool.RequireSpecific:
		return approvalFilter(m)
	case *tool.RequireSpecific:
		if m != nil {
			return approvalFilter(*m)
		}
	}
	return nil
}

func approvalFilter(m tool.RequireSpecific) events.ApprovalFilter {
	var f events.ApprovalFilter
	if len(m.Always) > 0 {
		f.Always = &events.ToolNameFilter{ToolNames: m.Always}
	}
	if len(m.Never) > 0 {
		f.Never = &events.ToolNameFilter{ToolNames: m.Never}
	}
	return f
}

func toolFromWire(w events.Tool) tool.Tool {
	if w.Type != events.ToolTypeMCP {
		return tool.Function{Name: w.Name, Description: w.Description, Parameters: w.Parameters}
	}

	s := tool.MCPServer{
		ServerLabel:       w.ServerLabel,
		ServerDescription: w.ServerDescription,
		Authorization:     w.Authorization,
		Headers:           w.Headers,
		AllowedTools:      w.AllowedTools,
		Approval:          approvalFromWire(w.RequireApproval),
	}
	if w.ServerURL != "" {
		s.Connection = tool.ServerURL(w.ServerURL)
	} else if w.ConnectorID != "" {
		s.Connection = tool.ConnectorID(w.ConnectorID)
	}
	return s
}

func approvalFromWire(v any) tool.ApprovalMode {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		if v == events.ApprovalNever {
			return tool.NeverRequire{}
		}
		return tool.AlwaysRequire{}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var f events.ApprovalFilter
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	var m tool.RequireSpecific
	if f.Always != nil {
		m.Always = f.Always.ToolNames
	}
	if f.Never != nil {
		m.Never = f.Never.ToolNames
	}
	return m
}
