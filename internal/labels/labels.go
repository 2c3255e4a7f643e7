// Package labels maps raw acquisition channels (T1, DI3, PH2) to the
// semantic sensor labels that rules reference. The mapping is configured
// per rig in a YAML file and applied upstream of rule evaluation.
package labels

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Channel binds one acquisition channel to its display label.
type Channel struct {
	Channel     string `yaml:"channel"`
	Label       string `yaml:"label"`
	Unit        string `yaml:"unit"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

type configFile struct {
	Channels []Channel `yaml:"channels"`
}

// Mapping resolves channel names to labels.
type Mapping struct {
	byChannel map[string]Channel
}

// Load reads a channel label mapping from path.
func Load(path string) (*Mapping, error) {
	if path == "" {
		return nil, errors.New("labels: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a channel label mapping from raw bytes.
func Parse(data []byte) (*Mapping, error) {
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("labels: yaml: %w", err)
	}
	if err := Validate(file.Channels); err != nil {
		return nil, err
	}

	byChannel := make(map[string]Channel, len(file.Channels))
	for _, ch := range file.Channels {
		if ch.Enabled != nil && !*ch.Enabled {
			continue
		}
		byChannel[ch.Channel] = ch
	}
	return &Mapping{byChannel: byChannel}, nil
}

// Validate checks a channel list for structural problems. Two channels of the
// same channel type (the leading letters of the channel name, so T1 and T9
// share type T) must not carry the same label, otherwise a rule would match
// an ambiguous sensor.
func Validate(channels []Channel) error {
	seenChannel := make(map[string]struct{}, len(channels))
	labelByType := make(map[string]string, len(channels))
	for _, ch := range channels {
		if ch.Channel == "" {
			return errors.New("labels: channel name is empty")
		}
		if ch.Label == "" {
			return fmt.Errorf("labels: channel %s has no label", ch.Channel)
		}
		if _, dup := seenChannel[ch.Channel]; dup {
			return fmt.Errorf("labels: duplicate channel %s", ch.Channel)
		}
		seenChannel[ch.Channel] = struct{}{}

		key := channelType(ch.Channel) + "|" + ch.Label
		if prev, dup := labelByType[key]; dup {
			return fmt.Errorf("labels: label %s assigned to both %s and %s", ch.Label, prev, ch.Channel)
		}
		labelByType[key] = ch.Channel
	}
	return nil
}

// Resolve returns the label for a channel, or false when unmapped or
// disabled.
func (m *Mapping) Resolve(channel string) (string, bool) {
	if m == nil {
		return "", false
	}
	ch, ok := m.byChannel[channel]
	if !ok {
		return "", false
	}
	return ch.Label, true
}

// Rename rewrites a channel-keyed value map into a label-keyed one. Unmapped
// channels keep their raw names so rules may still address them directly.
func (m *Mapping) Rename(values map[string]float64) map[string]float64 {
	if m == nil || len(m.byChannel) == 0 {
		return values
	}
	out := make(map[string]float64, len(values))
	for channel, v := range values {
		if label, ok := m.Resolve(channel); ok {
			out[label] = v
			continue
		}
		out[channel] = v
	}
	return out
}

// Channels returns the mapped channels sorted by channel name.
func (m *Mapping) Channels() []Channel {
	if m == nil {
		return nil
	}
	out := make([]Channel, 0, len(m.byChannel))
	for _, ch := range m.byChannel {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// channelType extracts the leading letter run of a channel name, so T13 maps
// to T and DI4 to DI.
func channelType(channel string) string {
	end := 0
	for _, r := range channel {
		if !unicode.IsLetter(r) {
			break
		}
		end += len(string(r))
	}
	if end == 0 {
		return channel
	}
	return strings.ToUpper(channel[:end])
}
