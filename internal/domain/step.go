package domain

import (
	"fmt"
	"strings"
)

// PartNameSeparator joins part labels into AssemblyStepRecord.PartNames.
const PartNameSeparator = ", "

// DescriptionSeparator joins a page summary and its detail into the embedded description.
const DescriptionSeparator = " | "

// AssemblyStepRecord is one manual page's structured knowledge as persisted in the vector store.
type AssemblyStepRecord struct {
	PageNumber  int
	PartNames   string
	Description string
	Embedding   []float32
	ImageSource string
}

// StructuredPage is the strict JSON object returned by the vision model for a manual page.
type StructuredPage struct {
	Page      int      `json:"page"`
	PartsList []string `json:"parts_list"`
	Summary   string   `json:"summary"`
	Detail    string   `json:"detail"`
}

// Description returns the text that gets embedded for the page.
func (p *StructuredPage) Description() string {
	summary := strings.TrimSpace(p.Summary)
	detail := strings.TrimSpace(p.Detail)
	if summary == "" && detail == "" {
		return ""
	}
	return summary + DescriptionSeparator + detail
}

// PartNames returns the ordered labels joined for storage. Compound labels such
// as "B1-18" are kept verbatim.
func (p *StructuredPage) PartNames() string {
	return strings.Join(p.PartsList, PartNameSeparator)
}

// Record builds the persisted record for the page. pageNumber is the index
// assigned by the corpus builder and takes precedence over p.Page.
func (p *StructuredPage) Record(pageNumber int, imageSource string) *AssemblyStepRecord {
	return &AssemblyStepRecord{
		PageNumber:  pageNumber,
		PartNames:   p.PartNames(),
		Description: p.Description(),
		ImageSource: imageSource,
	}
}

// ValidateAssemblyStepRecord validates a record before it is written.
// dimension <= 0 skips the embedding length check.
func ValidateAssemblyStepRecord(r *AssemblyStepRecord, dimension int) error {
	if r == nil {
		return fmt.Errorf("assembly step record cannot be nil")
	}

	if r.PageNumber <= 0 {
		return fmt.Errorf("assembly step PageNumber must be positive, got %d", r.PageNumber)
	}

	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("assembly step Description is required")
	}

	if len(r.Embedding) == 0 {
		return fmt.Errorf("assembly step Embedding is required")
	}

	if dimension > 0 && len(r.Embedding) != dimension {
		return fmt.Errorf("assembly step Embedding has %d dimensions, expected %d", len(r.Embedding), dimension)
	}

	if r.ImageSource == "" {
		return fmt.Errorf("assembly step ImageSource is required")
	}

	return nil
}
