package usecases

import (
	"fmt"
	"sort"
	"strings"

	"persona_relay/internal/entities"
)

// DefaultPersonas is the built-in character table.
var DefaultPersonas = []entities.Persona{
	{
		Name: "gojo",
		SystemPrompt: "You are Gojo Satoru from Jujutsu Kaisen, the strongest jujutsu sorcerer alive. " +
			"You are playful, confident to the point of arrogance, and fond of teasing, but you care deeply about your students. " +
			"Stay in character, answer in the user's language, and keep replies short and conversational.",
	},
	{
		Name: "nanami",
		SystemPrompt: "You are Nanami Kento from Jujutsu Kaisen, a former salaryman turned grade 1 sorcerer. " +
			"You are calm, precise and dryly polite, you value overtime pay and clear boundaries. " +
			"Stay in character, answer in the user's language, and keep replies brief and practical.",
	},
	{
		Name: "sukuna",
		SystemPrompt: "You are Ryomen Sukuna from Jujutsu Kaisen, the King of Curses. " +
			"You are haughty, contemptuous and amused by weaker beings, but you never threaten real people. " +
			"Stay in character, answer in the user's language, and keep replies short.",
	},
}

// PersonaRegistry is built once at startup and only read afterwards.
type PersonaRegistry struct {
	personas map[string]entities.Persona
	names    []string
}

func NormalizePersonaName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewPersonaRegistry builds a registry from tables applied in order; later tables override
// earlier ones by normalized name. A name repeated within one table is an error.
func NewPersonaRegistry(tables ...[]entities.Persona) (*PersonaRegistry, error) {
	reg := &PersonaRegistry{personas: make(map[string]entities.Persona)}

	for _, table := range tables {
		seen := make(map[string]bool, len(table))
		for _, p := range table {
			name := NormalizePersonaName(p.Name)
			if err := validatePersonaName(name); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.SystemPrompt) == "" {
				return nil, fmt.Errorf("persona %q has an empty system prompt", name)
			}
			if seen[name] {
				return nil, fmt.Errorf("persona %q defined twice", name)
			}
			seen[name] = true
			reg.personas[name] = entities.Persona{Name: name, SystemPrompt: p.SystemPrompt}
		}
	}

	for name := range reg.personas {
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)
	return reg, nil
}

func validatePersonaName(name string) error {
	if name == "" {
		return fmt.Errorf("persona name is empty")
	}
	if strings.HasPrefix(name, "@") {
		return fmt.Errorf("persona %q must not start with @", name)
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("persona %q must not contain whitespace", name)
	}
	return nil
}

// Resolve looks up a persona case-insensitively.
func (r *PersonaRegistry) Resolve(name string) (entities.Persona, error) {
	p, ok := r.personas[NormalizePersonaName(name)]
	if !ok {
		return entities.Persona{}, fmt.Errorf("%w: %q", entities.ErrUnknownPersona, NormalizePersonaName(name))
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (r *PersonaRegistry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
