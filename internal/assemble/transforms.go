package assemble

import (
	"fmt"
	"strings"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// Document is the extracted, assembly-ready view of one catalog entry.
type Document struct {
	EntryID string
	Source  corpus.SourceKind
	Title   string
	DocType string
	Year    int
	Text    string
}

// DisplayTitle falls back to the entry id when a source gave no title.
func (d Document) DisplayTitle() string {
	if strings.TrimSpace(d.Title) != "" {
		return d.Title
	}
	return d.EntryID
}

// Transform projects a document onto one training-record variant. The three
// variants are independent: applying one never reads or mutates another's
// output. Implementations set only their variant's fields; the assembler
// stamps ids and provenance.
type Transform interface {
	Variant() corpus.Variant
	Apply(doc Document) []corpus.TrainingRecord
}

// InstructionTransform emits instruction-following pairs framing each
// document several ways, plus per-section prompts for long documents.
type InstructionTransform struct {
	chunker *Chunker
}

// NewInstructionTransform builds the instruction projection.
func NewInstructionTransform(chunker *Chunker) *InstructionTransform {
	return &InstructionTransform{chunker: chunker}
}

func (t *InstructionTransform) Variant() corpus.Variant { return corpus.VariantInstruction }

func (t *InstructionTransform) Apply(doc Document) []corpus.TrainingRecord {
	title := doc.DisplayTitle()
	var records []corpus.TrainingRecord

	whatIs := doc.Text
	if doc.DocType != "" && doc.Year > 0 {
		whatIs = fmt.Sprintf("%s is a %s from %d. Here is its content:\n\n%s",
			title, doc.DocType, doc.Year, doc.Text)
	}
	records = append(records,
		corpus.TrainingRecord{
			Instruction: fmt.Sprintf("What is %s?", title),
			Output:      whatIs,
		},
		corpus.TrainingRecord{
			Instruction: fmt.Sprintf("Explain the content of %s", title),
			Output:      doc.Text,
		},
		corpus.TrainingRecord{
			Instruction: fmt.Sprintf("What does %s contain?", doc.EntryID),
			Output:      fmt.Sprintf("%s titled '%s' contains:\n\n%s", doc.EntryID, title, doc.Text),
		},
	)

	if len([]rune(doc.Text)) > t.chunker.Window {
		for i, chunk := range t.chunker.Chunk(doc.Text) {
			records = append(records, corpus.TrainingRecord{
				Instruction: fmt.Sprintf("Provide section %d of %s", i+1, title),
				Output:      chunk,
			})
		}
	}

	if doc.DocType != "" && doc.Year > 0 {
		records = append(records, corpus.TrainingRecord{
			Instruction: fmt.Sprintf("What type of document is %s?", title),
			Output:      fmt.Sprintf("%s is a %s from %d.", title, doc.DocType, doc.Year),
		})
	}
	if doc.Year > 0 {
		records = append(records, corpus.TrainingRecord{
			Instruction: fmt.Sprintf("When was %s published?", title),
			Output:      fmt.Sprintf("%s was published in %d.", title, doc.Year),
		})
	}
	return records
}

// CompletionTransform windows document text for pre-training style tuning.
type CompletionTransform struct {
	chunker *Chunker
}

// NewCompletionTransform builds the completion projection.
func NewCompletionTransform(chunker *Chunker) *CompletionTransform {
	return &CompletionTransform{chunker: chunker}
}

func (t *CompletionTransform) Variant() corpus.Variant { return corpus.VariantCompletion }

func (t *CompletionTransform) Apply(doc Document) []corpus.TrainingRecord {
	chunks := t.chunker.Chunk(doc.Text)
	records := make([]corpus.TrainingRecord, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, corpus.TrainingRecord{Text: chunk})
	}
	return records
}

// qaContextLimit caps the context excerpt attached to metadata questions.
const qaContextLimit = 500

// qaMinParagraph filters out headings and fragments when deriving
// section-level questions.
const qaMinParagraph = 100

// qaMaxParagraphs bounds how many leading paragraphs become questions.
const qaMaxParagraphs = 5

// QATransform derives question/answer pairs from document metadata and
// leading paragraphs. The heuristics are deliberately structural, not
// semantic: titles, years and paragraph boundaries only.
type QATransform struct{}

// NewQATransform builds the QA projection.
func NewQATransform() *QATransform { return &QATransform{} }

func (t *QATransform) Variant() corpus.Variant { return corpus.VariantQA }

func (t *QATransform) Apply(doc Document) []corpus.TrainingRecord {
	title := doc.DisplayTitle()
	excerpt := contextExcerpt(doc.Text)
	var records []corpus.TrainingRecord

	if strings.TrimSpace(doc.Title) != "" {
		records = append(records, corpus.TrainingRecord{
			Question: "What is the title of this document?",
			Answer:   doc.Title,
			Context:  excerpt,
		})
	}
	if doc.Year > 0 {
		records = append(records, corpus.TrainingRecord{
			Question: "What year was this document published?",
			Answer:   fmt.Sprintf("%d", doc.Year),
			Context:  excerpt,
		})
	}
	if doc.DocType != "" {
		records = append(records, corpus.TrainingRecord{
			Question: "What type of document is this?",
			Answer:   doc.DocType,
			Context:  excerpt,
		})
	}

	paragraphs := strings.Split(doc.Text, "\n\n")
	section := 0
	for _, paragraph := range paragraphs {
		if section >= qaMaxParagraphs {
			break
		}
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) <= qaMinParagraph {
			continue
		}
		section++
		records = append(records, corpus.TrainingRecord{
			Question: fmt.Sprintf("What does section %d of %s state?", section, title),
			Answer:   paragraph,
			Context:  doc.Text,
		})
	}
	return records
}

func contextExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= qaContextLimit {
		return text
	}
	return string(runes[:qaContextLimit]) + "..."
}
