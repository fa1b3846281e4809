package workflow

import (
	"strconv"
	"strings"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// interpolateAction substitutes {{event.*}} placeholders into every
// string field of a rule's action, the way the original template
// variables worked: {{event.text}}, {{event.sender}}, {{event.channel}},
// {{event.chat_id}}, {{event.timestamp}}, {{event.metric}}, {{event.value}}.
func interpolateAction(action models.TaskAction, event Event) models.TaskAction {
	r := templateReplacer(event)
	action.Prompt = r.Replace(action.Prompt)
	action.Message = r.Replace(action.Message)
	action.URL = r.Replace(action.URL)
	action.Body = r.Replace(action.Body)
	action.AgentName = r.Replace(action.AgentName)
	action.DeliverTo = r.Replace(action.DeliverTo)
	if len(action.Headers) > 0 {
		headers := make(map[string]string, len(action.Headers))
		for k, v := range action.Headers {
			headers[k] = r.Replace(v)
		}
		action.Headers = headers
	}
	return action
}

func templateReplacer(event Event) *strings.Replacer {
	return strings.NewReplacer(
		"{{event.text}}", event.str("text"),
		"{{event.sender}}", event.str("sender"),
		"{{event.channel}}", event.Source,
		"{{event.chat_id}}", event.str("chat_id"),
		"{{event.timestamp}}", event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		"{{event.metric}}", event.str("metric"),
		"{{event.value}}", strconv.FormatFloat(event.num("value"), 'g', -1, 64),
	)
}
