// Package identity maps a model identifier and message role to the avatar
// shown next to a message.
package identity

import (
	"strings"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyGemini    Family = "gemini"
	FamilyAnthropic Family = "anthropic"
	FamilyLocal     Family = "local"
	FamilyUnknown   Family = "unknown"
	FamilyUser      Family = "user"
)

// Descriptor is what a client needs to draw an avatar.
type Descriptor struct {
	Family Family `json:"family"`
	Icon   string `json:"icon"`
	Label  string `json:"label"`
}

var descriptors = map[Family]Descriptor{
	FamilyOpenAI:    {Family: FamilyOpenAI, Icon: "openai.svg", Label: "OpenAI"},
	FamilyGemini:    {Family: FamilyGemini, Icon: "gemini.svg", Label: "Gemini"},
	FamilyAnthropic: {Family: FamilyAnthropic, Icon: "anthropic.svg", Label: "Claude"},
	FamilyLocal:     {Family: FamilyLocal, Icon: "local.svg", Label: "Local model"},
	FamilyUnknown:   {Family: FamilyUnknown, Icon: "assistant.svg", Label: "Assistant"},
	FamilyUser:      {Family: FamilyUser, Icon: "user.svg", Label: "You"},
}

// prefixes is checked in order; the first match wins.
var prefixes = []struct {
	prefix string
	family Family
}{
	{"gpt-", FamilyOpenAI},
	{"chatgpt", FamilyOpenAI},
	{"o1", FamilyOpenAI},
	{"o3", FamilyOpenAI},
	{"o4", FamilyOpenAI},
	{"dall-e", FamilyOpenAI},
	{"openai/", FamilyOpenAI},
	{"gemini", FamilyGemini},
	{"google/", FamilyGemini},
	{"imagen", FamilyGemini},
	{"claude", FamilyAnthropic},
	{"anthropic/", FamilyAnthropic},
	{"ollama/", FamilyLocal},
	{"local/", FamilyLocal},
	{"llama", FamilyLocal},
	{"mistral", FamilyLocal},
	{"qwen", FamilyLocal},
	{"phi", FamilyLocal},
}

// FamilyOf classifies a model identifier. Unrecognized identifiers fall back
// to FamilyUnknown.
func FamilyOf(model string) Family {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return FamilyUnknown
	}
	for _, p := range prefixes {
		if strings.HasPrefix(m, p.prefix) {
			return p.family
		}
	}
	return FamilyUnknown
}

// Resolve returns the avatar for a message. User messages always get the
// user avatar regardless of model.
func Resolve(model string, role chat.Role) Descriptor {
	if role == chat.RoleUser {
		return descriptors[FamilyUser]
	}
	return descriptors[FamilyOf(model)]
}
