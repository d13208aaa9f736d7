package logx

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

// newBufferLogger returns a logger writing into a buffer for assertions.
func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{
		component: component,
		logger:    log.New(&buf, "", 0),
	}, &buf
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("controller")

	if logger.Component() != "controller" {
		t.Errorf("Expected component 'controller', got '%s'", logger.Component())
	}
}

func TestLogFormat(t *testing.T) {
	logger, buf := newBufferLogger("oracle")
	logger.Info("Test message with %s", "formatting")

	output := buf.String()

	if !strings.Contains(output, "[oracle]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected log level in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message with formatting") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
	// Check timestamp format (basic check)
	if !strings.Contains(output, "T") || !strings.Contains(output, "Z") {
		t.Errorf("Expected ISO timestamp in output, got: %s", output)
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	SetDebug(false, nil)
	defer SetDebug(false, nil)

	logger, buf := newBufferLogger("llm")
	logger.Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Expected no debug output when disabled, got: %s", buf.String())
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	SetDebug(true, []string{"controller"})
	defer SetDebug(false, nil)

	if !IsDebugEnabledForDomain("controller") {
		t.Error("Expected controller domain to be enabled")
	}
	if IsDebugEnabledForDomain("oracle") {
		t.Error("Expected oracle domain to be disabled")
	}

	SetDebug(true, nil)
	if !IsDebugEnabledForDomain("oracle") {
		t.Error("Expected all domains enabled when no filter set")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Expected nil for nil error")
	}

	err := Errorf("base failure: %d", 42)
	wrapped := Wrap(err, "loading config")
	if !strings.Contains(wrapped.Error(), "loading config: base failure: 42") {
		t.Errorf("Unexpected wrapped error: %v", wrapped)
	}
}
