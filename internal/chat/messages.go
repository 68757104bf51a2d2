package chat

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contactdesk/server/internal/model"
)

const agentPlaceholder = "$AGENT_USER"

//go:embed messages.yaml
var defaultMessages []byte

// Welcome is a greeting. Most channels use a plain string; WhatsApp
// interactive messages split it into header, body and footer.
type Welcome struct {
	Header string `yaml:"header"`
	Body   string `yaml:"body"`
	Footer string `yaml:"footer"`
}

// UnmarshalYAML accepts either a scalar (the body) or a mapping
func (w *Welcome) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		w.Body = node.Value
		return nil
	}
	type plain Welcome
	return node.Decode((*plain)(w))
}

// String returns the greeting as one text
func (w Welcome) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{w.Header, w.Body, w.Footer} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Messages is the bot copy of one channel
type Messages struct {
	Welcome            Welcome `yaml:"welcome"`
	ActionConnect      string  `yaml:"actionConnect"`
	ActionNone         string  `yaml:"actionNone"`
	ActionNoneResponse string  `yaml:"actionNoneResponse"`
	ActionStop         string  `yaml:"actionStop"`
	ActionStopResponse string  `yaml:"actionStopResponse"`
	NoAvailableAgents  string  `yaml:"noAvailableAgents"`
	AgentJoined        string  `yaml:"agentJoined"`
	AgentLeft          string  `yaml:"agentLeft"`
}

// Catalog maps channels to their bot copy
type Catalog map[model.Channel]Messages

// ParseCatalog reads a catalogue and checks every known channel is present
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse bot messages: %w", err)
	}
	for _, ch := range []model.Channel{model.ChannelMessenger, model.ChannelWhatsApp, model.ChannelSMS, model.ChannelViber} {
		m, ok := c[ch]
		if !ok {
			return nil, fmt.Errorf("bot messages: missing channel %q", ch)
		}
		if m.NoAvailableAgents == "" || m.AgentJoined == "" || m.AgentLeft == "" {
			return nil, fmt.Errorf("bot messages: incomplete channel %q", ch)
		}
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalogue
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultMessages)
}

// For returns the copy of ch
func (c Catalog) For(ch model.Channel) Messages {
	return c[ch]
}

// AgentStateText fills the agent joined/left copy with the agent's name
func (m Messages) AgentStateText(agentName string, joined bool) string {
	text := m.AgentLeft
	if joined {
		text = m.AgentJoined
	}
	return strings.ReplaceAll(text, agentPlaceholder, agentName)
}
