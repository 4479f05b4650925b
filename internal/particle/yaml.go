package particle

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML writes a curve in its ParseCurve text form.
func (c Curve) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML reads a curve from its ParseCurve text form.
func (c *Curve) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCurve(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = parsed
	return nil
}

// UnmarshalYAML fills fields missing from the document with editor defaults.
func (e *EmitterDef) UnmarshalYAML(value *yaml.Node) error {
	type plain EmitterDef
	d := (*plain)(NewEmitterDef())
	if err := value.Decode(d); err != nil {
		return err
	}
	*e = EmitterDef(*d)
	return nil
}

// ExportYAML renders s as a human-readable YAML document.
func (s *ParticleSystemDef) ExportYAML() ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to export %q: %w", s.Name, err)
	}
	return out, nil
}

// LoadYAML parses a document written by ExportYAML. Emitter indices follow
// list order and parents are derived from the child links.
func LoadYAML(data []byte) (*ParticleSystemDef, error) {
	s := NewParticleSystemDef()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, e := range s.Emitters {
		if e == nil {
			return nil, malformed("emitter %d is empty", i)
		}
		e.Index = i
	}
	if err := s.resolveLinks(); err != nil {
		return nil, err
	}
	for _, e := range s.Emitters {
		if err := e.validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}
