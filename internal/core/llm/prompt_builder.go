package llm

import (
	"fmt"
	"strings"
)

// ReplyContext describes who the drafted reply is for
type ReplyContext struct {
	BusinessName string
	Channel      string
	CustomerName string
	Tone         string
}

// BuildReplyPrompt membuat system prompt untuk draft balasan agent
func BuildReplyPrompt(rc ReplyContext) string {
	var sb strings.Builder

	business := rc.BusinessName
	if business == "" {
		business = "the business"
	}
	sb.WriteString(fmt.Sprintf("You draft replies for a customer support agent of %s.\n", business))
	if rc.Channel != "" {
		sb.WriteString(fmt.Sprintf("The conversation happens on %s.\n", rc.Channel))
	}
	if rc.CustomerName != "" {
		sb.WriteString(fmt.Sprintf("The customer's name is %s.\n", rc.CustomerName))
	}
	tone := rc.Tone
	if tone == "" {
		tone = "friendly and professional"
	}
	sb.WriteString(fmt.Sprintf("Tone: %s.\n\n", tone))

	sb.WriteString("Instructions:\n")
	sb.WriteString("- Reply to the customer's latest message in their language\n")
	sb.WriteString("- Keep it short enough for a chat message\n")
	sb.WriteString("- Do not invent prices, policies or order details\n")
	sb.WriteString("- Output only the reply text\n")

	return sb.String()
}
