package asset

import (
	"encoding/xml"
	"fmt"
)

type Setting struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Settings is an ordered name/value list serialized as
// <Settings><Setting name="..">..</Setting></Settings>.
type Settings struct {
	XMLName xml.Name  `xml:"Settings"`
	Items   []Setting `xml:"Setting"`
}

func (s *Settings) Get(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, it := range s.Items {
		if it.Name == name {
			return it.Value, true
		}
	}
	return "", false
}

// Set replaces an existing value or appends a new one.
func (s *Settings) Set(name, value string) {
	for i := range s.Items {
		if s.Items[i].Name == name {
			s.Items[i].Value = value
			return
		}
	}
	s.Items = append(s.Items, Setting{Name: name, Value: value})
}

// XML renders s as an XML document.
func (s *Settings) XML() (string, error) {
	b, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	return xml.Header + string(b), nil
}

func parseSettings(raw string) (*Settings, error) {
	var s Settings
	if err := xml.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return &s, nil
}
