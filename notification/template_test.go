package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := map[string]string{"orderNumber": "1001", "customerName": "Nimal"}

	assert.Equal(t, "Hi Nimal, order #1001 is on its way.",
		Render("Hi {customerName}, order #{orderNumber} is on its way.", vars))
	assert.Equal(t, "Rider:  ", Render("Rider: {riderPhone} {riderName}", vars), "unknown placeholders are blanked")
	assert.Equal(t, "{not a placeholder} {}", Render("{not a placeholder} {}", vars))
}
