package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"persona_relay/internal/entities"
)

type personaFile struct {
	Personas []entities.Persona `yaml:"personas"`
}

// LoadPersonaFile reads extra personas from a YAML file:
//
//	personas:
//	  - name: gojo
//	    system_prompt: You are Gojo Satoru...
func LoadPersonaFile(path string) ([]entities.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	var pf personaFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse personas file: %w", err)
	}
	if len(pf.Personas) == 0 {
		return nil, fmt.Errorf("personas file %s defines no personas", path)
	}
	return pf.Personas, nil
}
