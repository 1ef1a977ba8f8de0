package cdp

import (
	"encoding/json"
	"fmt"
)

// Request is an outbound RPC envelope.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Message is a decoded inbound frame. Replies carry ID and Result (or Error);
// notifications carry Method and Params.
type Message struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
}

// IsNotification reports whether the message is an unsolicited notification.
func (m *Message) IsNotification() bool {
	return m.Method != ""
}

// IsReply reports whether the message answers an earlier request.
func (m *Message) IsReply() bool {
	return m.Method == "" && m.ID != nil
}

// ProtocolError is the error object the remote endpoint returns for a failed call.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("remote error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// Outbound method names.
const (
	MethodConsoleEnable           = "Console.enable"
	MethodDebuggerEnable          = "Debugger.enable"
	MethodNetworkSetCacheDisabled = "Network.setCacheDisabled"
	MethodRuntimeEvaluate         = "Runtime.evaluate"
	MethodDebuggerSetScriptSource = "Debugger.setScriptSource"
	MethodPageReload              = "Page.reload"
)

// NotificationKind enumerates the inbound notifications the client understands.
type NotificationKind int

const (
	// KindUnknown is any method the client does not handle.
	KindUnknown NotificationKind = iota
	// KindScriptParsed is Debugger.scriptParsed.
	KindScriptParsed
	// KindMessageAdded is Console.messageAdded.
	KindMessageAdded
	// KindMessageRepeatCountUpdated is Console.messageRepeatCountUpdated.
	KindMessageRepeatCountUpdated
	// KindGlobalObjectCleared is Debugger.globalObjectCleared, sent on navigation and reload.
	KindGlobalObjectCleared
	// KindDetached is Inspector.detached.
	KindDetached
)

var kindByMethod = map[string]NotificationKind{
	"Debugger.scriptParsed":             KindScriptParsed,
	"Console.messageAdded":              KindMessageAdded,
	"Console.messageRepeatCountUpdated": KindMessageRepeatCountUpdated,
	"Debugger.globalObjectCleared":      KindGlobalObjectCleared,
	"Inspector.detached":                KindDetached,
}

// ParseKind decodes a notification method name.
func ParseKind(method string) NotificationKind {
	return kindByMethod[method]
}

// String returns the protocol method name for the kind.
func (k NotificationKind) String() string {
	for method, kind := range kindByMethod {
		if kind == k {
			return method
		}
	}
	return "unknown"
}

// ScriptParsedParams are the params of Debugger.scriptParsed.
type ScriptParsedParams struct {
	ScriptID        string `json:"scriptId"`
	URL             string `json:"url"`
	IsContentScript bool   `json:"isContentScript,omitempty"`
	SourceMapURL    string `json:"sourceMapURL,omitempty"`
}

// MessageAddedParams are the params of Console.messageAdded.
type MessageAddedParams struct {
	Message ConsoleMessage `json:"message"`
}

// ConsoleMessage is the console payload of Console.messageAdded.
type ConsoleMessage struct {
	Source     string            `json:"source,omitempty"`
	Level      string            `json:"level"`
	Type       string            `json:"type,omitempty"`
	Text       string            `json:"text,omitempty"`
	URL        string            `json:"url,omitempty"`
	Line       int               `json:"line,omitempty"`
	Column     int               `json:"column,omitempty"`
	Parameters []json.RawMessage `json:"parameters,omitempty"`
	Stack      *StackTrace       `json:"stack,omitempty"`
}

// StackTrace wraps the call frames of a console message.
type StackTrace struct {
	CallFrames []CallFrame `json:"callFrames"`
}

// CallFrame is one stack location. LineNumber is 0-based, ColumnNumber is 1-based.
type CallFrame struct {
	FunctionName string `json:"functionName,omitempty"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url,omitempty"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// DetachedParams are the params of Inspector.detached.
type DetachedParams struct {
	Reason string `json:"reason"`
}

// SetCacheDisabledParams are the params of Network.setCacheDisabled.
type SetCacheDisabledParams struct {
	CacheDisabled bool `json:"cacheDisabled"`
}

// EvaluateParams are the params of Runtime.evaluate.
type EvaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

// EvaluateResult is the result of Runtime.evaluate.
type EvaluateResult struct {
	Result           RemoteObject     `json:"result"`
	WasThrown        bool             `json:"wasThrown,omitempty"`
	ExceptionDetails *json.RawMessage `json:"exceptionDetails,omitempty"`
}

// RemoteObject is a mirror of a value in the remote runtime.
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

// SetScriptSourceParams are the params of Debugger.setScriptSource.
type SetScriptSourceParams struct {
	ScriptID     string `json:"scriptId"`
	ScriptSource string `json:"scriptSource"`
}

// ReloadParams are the params of Page.reload.
type ReloadParams struct {
	IgnoreCache bool `json:"ignoreCache"`
}
