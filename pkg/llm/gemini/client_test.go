package gemini

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"intakebot/pkg/llm"
)

// One gemini client serves every conversation, so the first calls can land
// concurrently. Initialization must happen exactly once and every caller
// must see the same underlying client.
func TestEnsureClientConcurrentFirstUse(t *testing.T) {
	c, ok := NewClientWithModel("test-key", "gemini-2.0-flash").(*Client)
	assert.True(t, ok)

	const callers = 8
	var wg sync.WaitGroup
	clients := make([]*genai.Client, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], errs[i] = c.ensureClient(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, clients[0], clients[i], "all callers must share one client")
		assert.Equal(t, errs[0], errs[i])
	}
}

func TestConvertMessagesSplitsSystemInstruction(t *testing.T) {
	contents, system, err := convertMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("be terse"),
		llm.NewUserMessage("hola"),
		{Role: llm.RoleAssistant, Content: "¿en qué ayudo?"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "be terse", system)
	assert.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
