package corpus

// SourceType classifies where a passage came from in the SRD.
type SourceType string

// Source types produced by the ingestion pipeline.
const (
	SourceSpell     SourceType = "spell"
	SourceMonster   SourceType = "monster"
	SourceRule      SourceType = "rule"
	SourceClass     SourceType = "class"
	SourceEquipment SourceType = "equipment"
)

// KnownSourceType reports whether t is one of the source types the
// ingestion pipeline emits.
func KnownSourceType(t SourceType) bool {
	switch t {
	case SourceSpell, SourceMonster, SourceRule, SourceClass, SourceEquipment:
		return true
	}
	return false
}

// Passage is the atomic unit of retrieval: a self-contained piece of SRD
// text plus the metadata needed to cite it. Passages are immutable once
// loaded.
type Passage struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourceType SourceType        `json:"source_type"`
	TokenCount int               `json:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// DisplayName returns the human-readable name used in citations, falling
// back to the section title and finally the passage ID.
func (p *Passage) DisplayName() string {
	if name := p.Metadata["name"]; name != "" {
		return name
	}
	if section := p.Metadata["section"]; section != "" {
		return section
	}
	return p.ID
}
