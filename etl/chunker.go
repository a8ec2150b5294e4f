package etl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dndsage/oracle/corpus"
)

const srdBaseURL = "https://www.dnd5eapi.co"

// TokenCodec is the tokenizer surface the chunker needs.
type TokenCodec interface {
	Count(text string) int
	Encode(text string) []int
	Decode(tokens []int) string
}

// NamedRef is a dnd5eapi reference with a display name.
type NamedRef struct {
	Index string `json:"index"`
	Name  string `json:"name"`
}

// Spell is the raw dnd5eapi spell record the chunker consumes.
type Spell struct {
	Index       string   `json:"index"`
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	School      NamedRef `json:"school"`
	CastingTime string   `json:"casting_time"`
	Range       string   `json:"range"`
	Duration    string   `json:"duration"`
	Components  []string `json:"components"`
	Desc        []string `json:"desc"`
	HigherLevel []string `json:"higher_level"`
	URL         string   `json:"url"`
}

// ArmorClass is one AC entry of a monster record.
type ArmorClass struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// Trait is a named monster trait or action.
type Trait struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// Monster is the raw dnd5eapi monster record the chunker consumes.
type Monster struct {
	Index            string            `json:"index"`
	Name             string            `json:"name"`
	Size             string            `json:"size"`
	Type             string            `json:"type"`
	Alignment        string            `json:"alignment"`
	ArmorClass       []ArmorClass      `json:"armor_class"`
	HitPoints        int               `json:"hit_points"`
	Speed            map[string]string `json:"speed"`
	ChallengeRating  float64           `json:"challenge_rating"`
	Strength         int               `json:"strength"`
	Dexterity        int               `json:"dexterity"`
	Constitution     int               `json:"constitution"`
	Intelligence     int               `json:"intelligence"`
	Wisdom           int               `json:"wisdom"`
	Charisma         int               `json:"charisma"`
	SpecialAbilities []Trait           `json:"special_abilities"`
	Actions          []Trait           `json:"actions"`
	URL              string            `json:"url"`
}

// RuleSection is the raw dnd5eapi rule section the chunker consumes.
type RuleSection struct {
	Index string `json:"index"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	URL   string `json:"url"`
}

// Chunker turns raw SRD records into retrieval passages. Spells and
// monsters become one markdown stat block each; rule sections are split
// into overlapping windows when they exceed maxTokens.
type Chunker struct {
	codec     TokenCodec
	maxTokens int
	overlap   int
}

// NewChunker creates a chunker. maxTokens and overlap bound rule section
// splitting; a non-positive maxTokens selects 512. Overlap must stay
// strictly below maxTokens or the split window would never advance, so
// invalid overlaps are clamped to a quarter of the window.
func NewChunker(codec TokenCodec, maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if overlap < 0 {
		overlap = 50
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 4
	}
	return &Chunker{codec: codec, maxTokens: maxTokens, overlap: overlap}
}

// ChunkSpell renders a spell as a single markdown passage.
func (c *Chunker) ChunkSpell(s Spell) corpus.Passage {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Name)
	fmt.Fprintf(&b, "**Level:** %d\n", s.Level)
	fmt.Fprintf(&b, "**School:** %s\n", s.School.Name)
	fmt.Fprintf(&b, "**Casting Time:** %s\n", s.CastingTime)
	fmt.Fprintf(&b, "**Range:** %s\n", s.Range)
	fmt.Fprintf(&b, "**Duration:** %s\n", s.Duration)
	fmt.Fprintf(&b, "**Components:** %s", strings.Join(s.Components, ", "))

	if len(s.Desc) > 0 {
		b.WriteString("\n\n**Description:**")
		for _, line := range s.Desc {
			b.WriteString("\n" + line)
		}
	}
	if len(s.HigherLevel) > 0 {
		b.WriteString("\n\n**At Higher Levels:**")
		for _, line := range s.HigherLevel {
			b.WriteString("\n" + line)
		}
	}

	text := b.String()
	return corpus.Passage{
		ID:         "spell/" + s.Index,
		Text:       text,
		SourceType: corpus.SourceSpell,
		TokenCount: c.codec.Count(text),
		Metadata: map[string]string{
			"name":   s.Name,
			"level":  fmt.Sprintf("%d", s.Level),
			"school": s.School.Name,
			"source": "SRD 5e",
			"url":    srdBaseURL + s.URL,
		},
	}
}

// ChunkMonster renders a monster stat block as a single markdown passage.
func (c *Chunker) ChunkMonster(m Monster) corpus.Passage {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", m.Name)
	fmt.Fprintf(&b, "*%s %s, %s*\n", m.Size, m.Type, m.Alignment)

	ac := "N/A"
	if len(m.ArmorClass) > 0 {
		ac = fmt.Sprintf("%d", m.ArmorClass[0].Value)
	}
	fmt.Fprintf(&b, "\n**Armor Class:** %s\n", ac)
	fmt.Fprintf(&b, "**Hit Points:** %d\n", m.HitPoints)
	fmt.Fprintf(&b, "**Speed:** %s\n", formatSpeed(m.Speed))
	fmt.Fprintf(&b, "**Challenge Rating:** %s\n", formatCR(m.ChallengeRating))

	b.WriteString("\n**Ability Scores:**")
	abilities := []struct {
		name  string
		score int
	}{
		{"STR", m.Strength},
		{"DEX", m.Dexterity},
		{"CON", m.Constitution},
		{"INT", m.Intelligence},
		{"WIS", m.Wisdom},
		{"CHA", m.Charisma},
	}
	for _, a := range abilities {
		fmt.Fprintf(&b, "\n- %s: %d (%+d)", a.name, a.score, abilityModifier(a.score))
	}

	if len(m.SpecialAbilities) > 0 {
		b.WriteString("\n\n**Special Abilities:**")
		for _, t := range m.SpecialAbilities {
			fmt.Fprintf(&b, "\n- **%s:** %s", t.Name, t.Desc)
		}
	}
	if len(m.Actions) > 0 {
		b.WriteString("\n\n**Actions:**")
		for _, t := range m.Actions {
			fmt.Fprintf(&b, "\n- **%s:** %s", t.Name, t.Desc)
		}
	}

	text := b.String()
	return corpus.Passage{
		ID:         "monster/" + m.Index,
		Text:       text,
		SourceType: corpus.SourceMonster,
		TokenCount: c.codec.Count(text),
		Metadata: map[string]string{
			"name":         m.Name,
			"cr":           formatCR(m.ChallengeRating),
			"monster_type": m.Type,
			"size":         m.Size,
			"source":       "SRD 5e",
			"url":          srdBaseURL + m.URL,
		},
	}
}

// ChunkRuleSection renders a rule section, splitting it into overlapping
// token windows when it exceeds the chunker's token limit.
func (c *Chunker) ChunkRuleSection(r RuleSection) []corpus.Passage {
	fullText := fmt.Sprintf("# %s\n\n%s", r.Name, r.Desc)

	meta := func() map[string]string {
		return map[string]string{
			"section": r.Name,
			"source":  "SRD 5e",
			"url":     srdBaseURL + r.URL,
		}
	}

	if count := c.codec.Count(fullText); count <= c.maxTokens {
		return []corpus.Passage{{
			ID:         "rule/" + r.Index,
			Text:       fullText,
			SourceType: corpus.SourceRule,
			TokenCount: count,
			Metadata:   meta(),
		}}
	}

	tokens := c.codec.Encode(fullText)
	var passages []corpus.Passage
	step := c.maxTokens - c.overlap
	for i := 0; i < len(tokens); i += step {
		end := i + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[i:end]

		md := meta()
		md["chunk_index"] = fmt.Sprintf("%d", len(passages))
		passages = append(passages, corpus.Passage{
			ID:         fmt.Sprintf("rule/%s#%d", r.Index, len(passages)),
			Text:       c.codec.Decode(window),
			SourceType: corpus.SourceRule,
			TokenCount: len(window),
			Metadata:   md,
		})
	}
	return passages
}

// abilityModifier computes the D&D ability modifier, rounding toward
// negative infinity as the rules require.
func abilityModifier(score int) int {
	d := score - 10
	if d < 0 && d%2 != 0 {
		return d/2 - 1
	}
	return d / 2
}

func formatSpeed(speed map[string]string) string {
	if len(speed) == 0 {
		return "N/A"
	}
	modes := make([]string, 0, len(speed))
	for mode := range speed {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	parts := make([]string, 0, len(modes))
	for _, mode := range modes {
		parts = append(parts, fmt.Sprintf("%s %s", mode, speed[mode]))
	}
	return strings.Join(parts, ", ")
}

// formatCR renders challenge ratings with fractions kept readable
// (0.25 -> 1/4) the way stat blocks print them.
func formatCR(cr float64) string {
	switch cr {
	case 0.125:
		return "1/8"
	case 0.25:
		return "1/4"
	case 0.5:
		return "1/2"
	}
	return fmt.Sprintf("%g", cr)
}
